package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>browserd</title></head>
<body>
	<h1 id="title">Hello</h1>
	<input id="q" value="">
	<p id="echo"></p>
	<button id="btn" onclick="document.getElementById('title').textContent = 'Clicked'">Go</button>
	<script>
		document.getElementById('q').addEventListener('input', function (e) {
			document.getElementById('echo').textContent = e.target.value;
		});
	</script>
</body>
</html>`

// chromeBin returns the local Chrome binary or skips the test
func chromeBin(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Chrome test in short mode")
	}
	bin, found := launcher.LookPath()
	if !found {
		t.Skip("Chrome not installed")
	}
	return bin
}

func TestRodEngineLifecycle(t *testing.T) {
	bin := chromeBin(t)

	var lastHeader atomic.Value
	lastHeader.Store("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		lastHeader.Store(r.Header.Get("X-Browserd-Test"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, testPage)
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "08168cd80dfd534a")
	engine := NewRodEngine(zerolog.Nop())

	bctx, err := engine.Launch(context.Background(), LaunchOptions{
		UserDataDir: dir,
		Headless:    true,
		NoSandbox:   true,
		ChromePath:  bin,
	})
	require.NoError(t, err)
	closed := false
	defer func() {
		if !closed {
			bctx.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// a fresh profile opens with one page, which is reused
	pages, err := bctx.Pages(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, pages)
	page := pages[0]

	require.NoError(t, bctx.SetExtraHeaders(ctx, map[string]string{"X-Browserd-Test": "yes"}))
	require.NoError(t, page.Navigate(ctx, srv.URL+"/", NavigateOptions{WaitUntil: WaitLoad, Timeout: 10 * time.Second}))
	assert.Equal(t, "yes", lastHeader.Load())

	html, err := page.Content(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, `id="title"`)

	t.Run("fill replaces the value", func(t *testing.T) {
		require.NoError(t, page.WaitForSelector(ctx, "#q"))
		require.NoError(t, page.Fill(ctx, "#q", "old"))
		require.NoError(t, page.Fill(ctx, "#q", "golang"))

		value, err := page.Evaluate(ctx, `document.querySelector('#q').value`)
		require.NoError(t, err)
		assert.Equal(t, "golang", value)

		text, err := page.TextContent(ctx, "#echo")
		require.NoError(t, err)
		assert.Equal(t, "golang", text)
	})

	t.Run("click", func(t *testing.T) {
		require.NoError(t, page.Click(ctx, "#btn"))
		text, err := page.TextContent(ctx, "#title")
		require.NoError(t, err)
		assert.Equal(t, "Clicked", text)
	})

	t.Run("evaluate awaits promises", func(t *testing.T) {
		got, err := page.Evaluate(ctx, `new Promise(resolve => setTimeout(() => resolve(21 * 2), 10))`)
		require.NoError(t, err)
		assert.EqualValues(t, 42, got)

		_, err = page.Evaluate(ctx, `throw new Error('boom')`)
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeEngineFailure))
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("missing element is bounded by ctx", func(t *testing.T) {
		short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		err := page.Click(short, "#does-not-exist")
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeEngineFailure))
	})

	t.Run("cookies", func(t *testing.T) {
		require.NoError(t, bctx.AddCookies(ctx, []Cookie{{Name: "sid", Value: "abc", URL: srv.URL}}))

		cookies, err := bctx.Cookies(ctx)
		require.NoError(t, err)
		var found *Cookie
		for i := range cookies {
			if cookies[i].Name == "sid" {
				found = &cookies[i]
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, "abc", found.Value)
		assert.Equal(t, "127.0.0.1", found.Domain)
	})

	t.Run("screenshot", func(t *testing.T) {
		img, err := page.Screenshot(ctx, false)
		require.NoError(t, err)
		require.Greater(t, len(img), 8)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, img[:4])
	})

	t.Run("history", func(t *testing.T) {
		require.NoError(t, page.Reload(ctx))
		require.NoError(t, page.Back(ctx))
		require.NoError(t, page.Forward(ctx))
	})

	require.NoError(t, bctx.Close())
	closed = true

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
