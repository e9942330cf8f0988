package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodesieve/internal/shared/types"
	"nodesieve/nodepool/report"
)

const nodes = "trojan://pw@a.example:443#a\nvless://id@b.example:443#b\n"

func newTestServer(t *testing.T, withFiles bool) (*Server, *types.Config) {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.OutputConf.Dir = t.TempDir()

	if withFiles {
		r := report.Build(report.Input{TotalInput: 2, AfterDedup: 2, ParsedSuccess: 2})
		require.NoError(t, report.Write(cfg.OutputConf.Dir, cfg.NodesFile, cfg.ReportFile, []string{
			"trojan://pw@a.example:443#a",
			"vless://id@b.example:443#b",
		}, r))
	}
	return NewServer(cfg), cfg
}

func get(t *testing.T, s *Server, target string, auth ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, false)
	w := get(t, s, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["has_nodes"])
}

func TestSubscription(t *testing.T) {
	s, _ := newTestServer(t, true)

	w := get(t, s, "/sub")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, nodes, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = get(t, s, "/sub?format=base64")
	require.Equal(t, http.StatusOK, w.Code)
	decoded, err := base64.StdEncoding.DecodeString(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, nodes, string(decoded))
}

func TestReport(t *testing.T) {
	s, _ := newTestServer(t, true)

	w := get(t, s, "/api/report")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"<100ms"`)

	var r report.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, 2, r.Summary.TotalInput)
	assert.NotEmpty(t, r.RunID)
}

func TestMissingFiles(t *testing.T) {
	s, _ := newTestServer(t, false)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/sub").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/report").Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.OutputConf.Dir = t.TempDir()
	cfg.WebConf.User = "admin"
	cfg.WebConf.Password = "secret"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.OutputConf.Dir, cfg.NodesFile), []byte(nodes), 0644))
	s := NewServer(cfg)

	assert.Equal(t, http.StatusOK, get(t, s, "/health").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, s, "/sub").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, s, "/sub", "admin", "wrong").Code)

	w := get(t, s, "/sub", "admin", "secret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, nodes, w.Body.String())
}
