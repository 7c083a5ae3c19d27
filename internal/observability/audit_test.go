package observability

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestAuditLoggerRecord(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLogger(&buf)

	a.Session(context.Background(), "session_created", "0123456789abcdef", "success", map[string]interface{}{"new_profile": true})
	a.Security(context.Background(), "url_rejected", "0123456789abcdef", "failure", nil)
	a.Config(context.Background(), "config_reloaded", "success", nil)

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 3)

	assert.Equal(t, AuditTypeSession, lines[0]["type"])
	assert.Equal(t, "0123456789abcdef", lines[0]["actor"])
	assert.Equal(t, "session_created", lines[0]["action"])
	assert.Equal(t, map[string]any{"new_profile": true}, lines[0]["metadata"])

	assert.Equal(t, AuditTypeSecurity, lines[1]["type"])
	assert.NotContains(t, lines[1], "metadata")

	assert.Equal(t, "system", lines[2]["actor"])
}

func TestOpenAuditLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	a, err := OpenAuditLogger(path)
	require.NoError(t, err)
	a.Session(context.Background(), "session_closed", "abcd", "success", nil)
	require.NoError(t, a.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, data)
	require.Len(t, lines, 1)
	assert.Equal(t, "session_closed", lines[0]["action"])
}

func TestNilAuditLogger(t *testing.T) {
	var a *AuditLogger
	a.Session(context.Background(), "session_created", "abcd", "success", nil)
	assert.NoError(t, a.Close())
}
