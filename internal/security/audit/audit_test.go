package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogUserChangeCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	al := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := WithRequestID(context.Background(), "req-42")
	al.LogUserChange(ctx, "actor-1", "delete", "user-7", "success")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "audit", rec["msg"])
	assert.Equal(t, "audit", rec["log_type"])
	assert.Equal(t, "delete", rec["action"])
	assert.Equal(t, "user", rec["resource"])
	assert.Equal(t, "user-7", rec["resource_id"])
	assert.Equal(t, "actor-1", rec["actor_id"])
	assert.Equal(t, "req-42", rec["request_id"])
}

func TestRequestIDMissing(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
}
