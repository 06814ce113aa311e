package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.NotNil(t, watcher.debouncer)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)

	watcher.AddFilter(ViewFilter)
	watcher.AddHandler(func([]ChangeEvent) error { return nil })
	assert.Len(t, watcher.filters, 1)
	assert.Len(t, watcher.handlers, 1)
}

func TestAddRecursive(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blog", "2024"), 0o755))

	assert.NoError(t, watcher.AddRecursive(dir))
	assert.Contains(t, watcher.watcher.WatchList(), filepath.Join(dir, "blog", "2024"))
	assert.Error(t, watcher.AddRecursive("/non/existent/path"))
}

func TestDebouncerGroupsEvents(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)

	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "b.html"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "a.html"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "b.html"})

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.html", events[0].Path)
		assert.Equal(t, "b.html", events[1].Path)
		assert.Equal(t, EventTypeCreated, events[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer did not flush")
	}
}

func TestWatchesNewViews(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blog"), 0o755))

	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.AddFilter(ViewFilter)
	watcher.AddFilter(NoHiddenFilter)

	var (
		mu     sync.Mutex
		events []ChangeEvent
	)
	watcher.AddHandler(func(batch []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, batch...)
		return nil
	})
	require.NoError(t, watcher.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".index.html.swp"), []byte("x"), 0o644))
	post := filepath.Join(dir, "blog", "post.njk")
	require.NoError(t, os.WriteFile(post, []byte("<p>post</p>"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, e := range events {
		assert.Equal(t, post, e.Path)
	}
	assert.True(t, Structural(events))
}

func TestViewFilter(t *testing.T) {
	testCases := []struct {
		path     string
		expected bool
	}{
		{"index.html", true},
		{"blog/post.njk", true},
		{"layout.nunjucks", true},
		{"main.js", false},
		{"style.scss", false},
		{"README", false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, ViewFilter(tc.path))
		})
	}
}

func TestNoHiddenFilter(t *testing.T) {
	assert.True(t, NoHiddenFilter("/src/views/index.html"))
	assert.False(t, NoHiddenFilter("/src/views/.index.html.swp"))
}

func TestStructural(t *testing.T) {
	assert.False(t, Structural(nil))
	assert.False(t, Structural([]ChangeEvent{{Type: EventTypeModified}}))
	assert.True(t, Structural([]ChangeEvent{{Type: EventTypeModified}, {Type: EventTypeDeleted}}))
	assert.True(t, Structural([]ChangeEvent{{Type: EventTypeRenamed}}))
}
