package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter("info", "json", &buf)
	defer Initialize("info", "text")

	Debug("hidden")
	Transition(context.Background(), "r-1", "PENDING", "ACCEPTED", []string{"e-1"}, "actor_id", "owner")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "Rental transition committed", record["msg"])
	assert.Equal(t, "r-1", record["rental_id"])
	assert.Equal(t, "ACCEPTED", record["to"])
	assert.Equal(t, "owner", record["actor_id"])
}

func TestInitializeWithWriter_Levels(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter("warn", "text", &buf)
	defer Initialize("info", "text")

	Info("skipped")
	DatabaseResult("Insert", 0, errors.New("boom"), "table", "wallets")
	ExternalServiceResult("redis", "GET", nil)

	out := buf.String()
	assert.NotContains(t, out, "skipped")
	assert.Contains(t, out, "Database call failed")
	assert.Contains(t, out, "table=wallets")
	assert.NotContains(t, out, "External service call succeeded")
}
