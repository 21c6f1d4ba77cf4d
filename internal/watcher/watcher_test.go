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

	"github.com/conneroisu/tabcanvas/internal/logging"
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
		{EventType(99), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, logging.NewTestLogger())
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.NotNil(t, watcher.debouncer)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestValidatePath(t *testing.T) {
	for path, ok := range map[string]bool{
		"site.yml":          true,
		"./content/a.md":    true,
		"/tmp/x/site.yml":   true,
		"../site.yml":       false,
		"content/../../etc": false,
		"":                  false,
	} {
		_, err := validatePath(path)
		if ok {
			assert.NoError(t, err, path)
		} else {
			assert.Error(t, err, path)
		}
	}
}

func TestFilters(t *testing.T) {
	assert.True(t, SiteFileFilter("site.yml"))
	assert.True(t, SiteFileFilter("dir/Site.YAML"))
	assert.False(t, SiteFileFilter("site.json"))

	assert.True(t, ContentFileFilter("docs/intro.md"))
	assert.True(t, ContentFileFilter("page.HTM"))
	assert.False(t, ContentFileFilter("image.png"))

	assert.False(t, NoEditorTempFilter("site.yml~"))
	assert.False(t, NoEditorTempFilter(".site.yml.swp"))
	assert.False(t, NoEditorTempFilter("dir/.#site.yml"))
	assert.True(t, NoEditorTempFilter("site.yml"))

	assert.False(t, NoGitFilter(".git/config"))
	assert.False(t, NoGitFilter("repo/.git/HEAD"))
	assert.True(t, NoGitFilter("repo/site.yml"))

	same := SameFileFilter("./dir/site.yml")
	assert.True(t, same("dir/site.yml"))
	assert.False(t, same("dir/other.yml"))
}

func TestDebouncer_CollapsesAndSorts(t *testing.T) {
	debouncer := &Debouncer{
		delay:   30 * time.Millisecond,
		events:  make(chan ChangeEvent, 100),
		output:  make(chan []ChangeEvent, 10),
		pending: make([]ChangeEvent, 0),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go debouncer.start(ctx)

	debouncer.events <- ChangeEvent{Path: "b.yml", Type: EventTypeModified}
	debouncer.events <- ChangeEvent{Path: "a.md", Type: EventTypeCreated}
	debouncer.events <- ChangeEvent{Path: "a.md", Type: EventTypeModified}

	select {
	case events := <-debouncer.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.md", events[0].Path)
		assert.Equal(t, EventTypeModified, events[0].Type, "last event per path wins")
		assert.Equal(t, "b.yml", events[1].Path)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer did not flush")
	}
}

func TestWatchFile_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.yml")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("tabs: []\n"), 0o600))

	watcher, err := NewFileWatcher(20*time.Millisecond, logging.NewTestLogger())
	require.NoError(t, err)
	defer watcher.Stop()

	require.NoError(t, watcher.WatchFile(path))

	var mu sync.Mutex
	var got []ChangeEvent
	done := make(chan struct{}, 1)
	watcher.AddHandler(func(events []ChangeEvent) error {
		mu.Lock()
		got = append(got, events...)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("tabs:\n  - label: A\n"), 0o600))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, ev := range got {
		assert.Equal(t, filepath.Clean(path), filepath.Clean(ev.Path))
	}
}

func TestAddRecursive_SkipsGit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "content", "docs"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o755))

	watcher, err := NewFileWatcher(20*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	require.NoError(t, watcher.AddRecursive(dir))
	watched := watcher.watcher.WatchList()
	assert.Contains(t, watched, filepath.Join(dir, "content", "docs"))
	assert.NotContains(t, watched, filepath.Join(dir, ".git", "objects"))
}
