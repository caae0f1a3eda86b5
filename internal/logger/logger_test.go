package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rejection struct{}

func (rejection) Error() string       { return "not enough balance" }
func (rejection) RejectionKind() bool { return true }

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &rec))
	return rec
}

func TestExitMethodWithError_Levels(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "debug", "json")
	t.Cleanup(func() { Initialize("info", "text") })

	ExitMethodWithError("TransferService.Transfer", rejection{}, "amount", "600.00")
	rec := lastRecord(t, &buf)
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "khazna", rec["app"])

	ExitMethodWithError("TransferService.Transfer", errors.New("connection refused"))
	rec = lastRecord(t, &buf)
	assert.Equal(t, "ERROR", rec["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "warning", "json")
	t.Cleanup(func() { Initialize("info", "text") })

	Info("dropped")
	DatabaseCall("SELECT", "cars")
	assert.Zero(t, buf.Len())

	WithActor(6, "worker").Warn("kept")
	rec := lastRecord(t, &buf)
	assert.Equal(t, float64(6), rec["actor_id"])
	assert.Equal(t, "worker", rec["actor_role"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("DEBUG").String())
	assert.Equal(t, "INFO", parseLevel("verbose").String())
	assert.Equal(t, "ERROR", parseLevel("error").String())
}
