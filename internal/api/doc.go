// Package api contains the HTTP handlers of the task sync service. Handlers
// validate request shape, lease one store connection per request through a
// store.Gateway, and translate store errors into status codes and sanitized
// JSON messages.
package api
