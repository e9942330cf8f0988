package source

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodesieve/internal/shared/types"
)

func writeLines(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644))
	return path
}

func TestFileSource_PrefersAllURLFile(t *testing.T) {
	dir := t.TempDir()
	all := writeLines(t, dir, "all.txt", "trojan://a@x:1", "", "not a uri", "  vless://b@y:2  ")
	collected := writeLines(t, dir, "collected.txt", "ss://zzz")

	s := NewFileSource(all, collected)
	lines, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"trojan://a@x:1", "vless://b@y:2"}, lines)
	assert.Equal(t, "file:"+all, s.Name())
}

func TestFileSource_FallsBackToCollected(t *testing.T) {
	dir := t.TempDir()
	collected := writeLines(t, dir, "collected.txt", "ss://zzz", "", "bare-line")

	lines, err := NewFileSource(filepath.Join(dir, "missing.txt"), collected).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ss://zzz", "bare-line"}, lines)
}

func TestFileSource_NoFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFileSource(filepath.Join(dir, "a"), filepath.Join(dir, "b")).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestDecodeSubscription(t *testing.T) {
	plain := "trojan://a@x:1\r\nvless://b@y:2\n\n"
	assert.Equal(t, []string{"trojan://a@x:1", "vless://b@y:2"}, decodeSubscription([]byte(plain)))

	encoded := base64.StdEncoding.EncodeToString([]byte(plain))
	// 订阅常见按 76 列折行
	wrapped := encoded[:10] + "\n" + encoded[10:]
	assert.Equal(t, []string{"trojan://a@x:1", "vless://b@y:2"}, decodeSubscription([]byte(wrapped)))

	raw := base64.RawURLEncoding.EncodeToString([]byte("ss://abc#n"))
	assert.Equal(t, []string{"ss://abc#n"}, decodeSubscription([]byte(raw)))

	assert.Empty(t, decodeSubscription([]byte("<html>nothing</html>")))
}

func TestSubscriptionSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plain":
			w.Write([]byte("hysteria2://pw@h:443\n"))
		case "/b64":
			w.Write([]byte(base64.StdEncoding.EncodeToString([]byte("trojan://a@x:1\nvmess://abc"))))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewSubscriptionSource([]string{srv.URL + "/plain", srv.URL + "/missing", srv.URL + "/b64"}, time.Second)
	lines, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hysteria2://pw@h:443", "trojan://a@x:1", "vmess://abc"}, lines)
}

func TestSubscriptionSource_AllFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewSubscriptionSource([]string{srv.URL + "/x"}, time.Second).Fetch(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoSource))
}

const channelHTML = `<html><body>
<div class="tgme_widget_message_text">free nodes<br>trojan://pw@t.example:443#a<br>vless://id@v.example:8443?type=ws#b</div>
<div class="tgme_widget_message_text"><code>ss://YWVzLTI1Ni1nY206cHc@1.2.3.4:8388#c</code></div>
<p>duplicate trojan://pw@t.example:443#a.</p>
<a href="hysteria2://auth@h.example:443">connect</a>
<a href="https://example.com/about">about</a>
</body></html>`

func TestExtractFromDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(channelHTML))
	}))
	defer srv.Close()

	lines, err := NewChannelSource([]string{srv.URL + "/s/channel"}, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"trojan://pw@t.example:443#a",
		"vless://id@v.example:8443?type=ws#b",
		"ss://YWVzLTI1Ni1nY206cHc@1.2.3.4:8388#c",
		"hysteria2://auth@h.example:443",
	}, lines)
}

type staticSource struct {
	name  string
	lines []string
	err   error
}

func (s staticSource) Name() string                            { return s.name }
func (s staticSource) Fetch(context.Context) ([]string, error) { return s.lines, s.err }

func TestCollect(t *testing.T) {
	lines, err := Collect(context.Background(), []Source{
		staticSource{name: "file", err: ErrNoSource},
		staticSource{name: "sub", lines: []string{"a://1", "b://2"}},
		staticSource{name: "broken", err: errors.New("timeout")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a://1", "b://2"}, lines)

	_, err = Collect(context.Background(), []Source{staticSource{name: "file", err: ErrNoSource}})
	assert.ErrorIs(t, err, ErrNoSource)

	lines, err = Collect(context.Background(), []Source{
		staticSource{name: "file", err: ErrNoSource},
		staticSource{name: "sub", err: errors.New("down")},
	})
	require.NoError(t, err, "remote configured but failing is not missing input")
	assert.Empty(t, lines)
}

func TestNew(t *testing.T) {
	assert.Len(t, New(types.InputConf{}), 1)
	assert.Len(t, New(types.InputConf{SubscriptionURLs: []string{"http://a"}, ChannelPages: []string{"http://b"}}), 3)
}
