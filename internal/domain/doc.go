// Package domain contains the task entity, the typed partial-update model
// and the validation errors shared by the store and API layers. It has no
// knowledge of SQL or HTTP.
package domain
