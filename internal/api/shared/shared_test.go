package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/tasksync-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	withTrace := SetTraceID(ctx)
	traceID := GetTraceID(withTrace)
	assert.True(t, ValidTraceID(traceID))
	assert.Empty(t, GetTraceID(ctx), "original context must remain unchanged")

	assert.Empty(t, GetTraceID(context.WithValue(ctx, TraceIDKey, 123)))
	assert.False(t, ValidTraceID("not-a-uuid"))
}

func TestRespondWithJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusCreated, MessageResponse{Message: "task created", TaskID: "t1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"task created","task_id":"t1"}`, w.Body.String())
}

func TestRespondWithErrorAndLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "ERROR"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantLevel: "WARN"},
		{name: "client error", status: http.StatusBadRequest, wantLevel: "DEBUG"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			ctx := logger.WithLogger(WithTraceID(context.Background(), "trace-1"), log)
			req := httptest.NewRequest(http.MethodPost, "/api/tasks", nil).WithContext(ctx)
			w := httptest.NewRecorder()

			err := errors.New("dial postgres://app:hunter2@db/tasks failed")
			RespondWithErrorAndLog(w, req, tc.status, "Failed to save task", err)

			assert.Equal(t, tc.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "Failed to save task", body.Error)
			assert.Equal(t, "trace-1", body.TraceID)
			assert.NotContains(t, w.Body.String(), "hunter2")

			logged := buf.String()
			assert.Contains(t, logged, `"level":"`+tc.wantLevel+`"`)
			assert.NotContains(t, logged, "hunter2")
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name" validate:"required"`
	}

	t.Run("ignores unknown keys", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
		var p payload
		require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &p))
		assert.Equal(t, "x", p.Name)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		var p payload
		assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), req, &p), ErrInvalidJSON)
	})

	t.Run("validation reports json field names", func(t *testing.T) {
		field, tag, ok := FirstInvalidField(ValidateRequest(&payload{}))
		require.True(t, ok)
		assert.Equal(t, "name", field)
		assert.Equal(t, "required", tag)

		_, _, ok = FirstInvalidField(errors.New("other"))
		assert.False(t, ok)
	})
}
