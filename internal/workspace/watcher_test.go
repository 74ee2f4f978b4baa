package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/bhc/internal/metadata"
	"github.com/starford/bhc/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func indexHas(s *Session, root, path string) bool {
	index, err := s.Index(root)
	if err != nil {
		return false
	}
	_, ok := index.CSSFileByPath(path)
	return ok
}

func TestWatcher_NewStylesheetTracked(t *testing.T) {
	root, _ := testutil.TestWorkspace(t)
	testutil.WriteFile(t, root, "index.html", `<link rel="stylesheet" href="a.css">`)
	s := testSession(t, root)
	logger := testutil.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, s, root, 50*time.Millisecond, nil, logger, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+filepath.Base(path))
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	a := testutil.WriteFile(t, root, "a.css", "h1{color:red;}")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return indexHas(s, root, a)
	}, "new stylesheet not tracked by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:a.css" {
				return true
			}
		}
		return false
	}, "expected created:a.css callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root, _ := testutil.TestWorkspace(t)
	testutil.WriteFile(t, root, "index.html", `<p>x</p>`)
	s := testSession(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, s, root, 50*time.Millisecond, nil, testutil.Logger(), nil)
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(root, "styles")
	_ = os.MkdirAll(sub, 0o755)
	time.Sleep(100 * time.Millisecond)

	deep := testutil.WriteFile(t, root, "styles/deep.css", "p{margin:0;}")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return indexHas(s, root, deep)
	}, "stylesheet in new directory not tracked")
}

func TestWatcher_IgnoresMetadataWrites(t *testing.T) {
	root, _ := testutil.TestWorkspace(t)
	testutil.WriteFile(t, root, "a.css", "h1{color:red;}")
	s := testSession(t, root)
	if _, err := s.Reconcile(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	count := 0
	go Watch(ctx, s, root, 50*time.Millisecond, nil, testutil.Logger(), func(string, string) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	testutil.WriteFile(t, root, filepath.Join(metadata.DirName, metadata.VirtualName, "x.css"), "p{}")
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("metadata writes produced %d events", count)
	}
}

func TestWatcher_SharedStylesheetEditReconciled(t *testing.T) {
	root, _ := testutil.TestWorkspace(t)
	base := testutil.WriteFile(t, root, ".bhc/.shared/base.css", "body{margin:0;}")
	testutil.Touch(t, base, -time.Hour)
	testutil.WriteFile(t, root, "index.html", `<link rel="stylesheet" href="/.bhc/.shared/base.css">`)
	s := testSession(t, root)
	if _, err := s.Reconcile(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, s, root, 50*time.Millisecond, nil, testutil.Logger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+filepath.Base(path))
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	testutil.WriteFile(t, root, ".bhc/.shared/base.css", "body{margin:4px;}")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		rec, err := s.CSSMetaDataFor(base)
		if err != nil || len(rec.Styles) != 1 || len(rec.Styles[0].Attributes) != 1 {
			return false
		}
		vals := rec.Styles[0].Attributes[0].Values
		return len(vals) == 1 && vals[0] == "4px"
	}, "shared stylesheet edit not reconciled")

	mu.Lock()
	defer mu.Unlock()
	for _, e := range events {
		if e == "updated:base.css" || e == "created:base.css" {
			return
		}
	}
	t.Errorf("events = %v, want a base.css change", events)
}
