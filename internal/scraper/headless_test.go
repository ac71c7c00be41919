package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// modalScript opens a copy of the modal template for the clicked item, titled
// after it, and removes the modal when its close button is clicked.
const modalScript = `<template id="modal">%MODAL%</template>
<script>
document.addEventListener('click', function (e) {
  var info = e.target.closest('button.dli-info-icon');
  if (info) {
    var title = info.closest('li').querySelector('h3.ipc-title__text').textContent;
    var panel = document.getElementById('modal').content.firstElementChild.cloneNode(true);
    panel.querySelector('h3.ipc-title__text').textContent = title;
    document.body.appendChild(panel);
    return;
  }
  if (e.target.closest('button.ipc-promptable-base__close')) {
    document.querySelectorAll('div.ipc-promptable-base__panel').forEach(function (p) { p.remove(); });
  }
});
</script>
</body>`

func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"headless_shell", "headless-shell", "chromium", "chromium-browser",
		"google-chrome", "google-chrome-stable",
	} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no Chrome binary on PATH")
}

func TestHeadlessSourceItems(t *testing.T) {
	requireChrome(t)

	page := strings.Replace(readFixture(t, "list.html"), "</body>",
		strings.Replace(modalScript, "%MODAL%", strings.TrimSpace(readFixture(t, "modal.html")), 1), 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)

	// A short navigation timeout would kill the browser if it applied to startup.
	src := NewHeadlessSource(HeadlessConfig{NavigationTimeout: 10 * time.Second})
	t.Cleanup(src.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	items, err := src.Items(ctx, srv.URL+"/search/title/?countries=KR", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)

	for i, want := range []string{"Oldboy", "Memories of Murder"} {
		require.NoError(t, items[i].Err)
		require.Equal(t, i+1, items[i].Rank)
		require.Equal(t, want, items[i].Movie.Title)
		require.Equal(t, []string{"Drama", "Thriller"}, items[i].Movie.Genres)
	}
}

func TestHeadlessSourceLimitFollowsPage(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><ul></ul></body></html>`))
	}))
	t.Cleanup(srv.Close)

	src := NewHeadlessSource(HeadlessConfig{NavigationTimeout: 10 * time.Second})
	t.Cleanup(src.Close)

	items, err := src.Items(context.Background(), srv.URL, 5)
	require.NoError(t, err)
	require.Empty(t, items)
}
