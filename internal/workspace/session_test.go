package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/bhc/internal/apperr"
	"github.com/starford/bhc/internal/testutil"
)

func testSession(t *testing.T, roots ...string) *Session {
	t.Helper()
	s := NewSession(testutil.Logger())
	for _, r := range roots {
		if _, err := s.AddRoot(r); err != nil {
			t.Fatalf("AddRoot(%s): %v", r, err)
		}
	}
	return s
}

func TestProject_MergesSeveralStylesheets(t *testing.T) {
	root, _ := testutil.TestWorkspace(t)
	testutil.WriteFile(t, root, "a.css", "h1{color:red;}")
	testutil.WriteFile(t, root, "b.css", "h1{font-size:10pt;} p{color:blue;}")
	page := testutil.WriteFile(t, root, "pages/index.html", `
<link rel="stylesheet" href="../a.css">
<link rel="stylesheet" href="../b.css">`)

	var mu sync.Mutex
	var events []string
	s := NewSession(testutil.Logger(), WithEventCallback(func(kind, _, _ string) {
		mu.Lock()
		events = append(events, kind)
		mu.Unlock()
	}))
	if _, err := s.AddRoot(root); err != nil {
		t.Fatal(err)
	}

	proj, err := s.Project(context.Background(), page, nil)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	wantPath := filepath.Join(root, ".bhc", ".virtual", "pages", "index.css")
	if proj.Path != wantPath {
		t.Errorf("path = %q, want %q", proj.Path, wantPath)
	}
	want := "h1 {\n\tcolor: red;\n\tfont-size: 10pt;\n}\np {\n\tcolor: blue;\n}\n"
	if proj.CSS != want {
		t.Errorf("css = %q\nwant %q", proj.CSS, want)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("projection not written: %v", err)
	}
	if string(data) != want {
		t.Errorf("written = %q", data)
	}
	if proj.File == nil || len(proj.File.IncludedFiles) != 2 {
		t.Errorf("formatted file = %+v", proj.File)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != "reconciled" || events[1] != "projected" {
		t.Errorf("events = %v", events)
	}
}

func TestProject_SingleStylesheetShortcut(t *testing.T) {
	root, _ := testutil.TestWorkspace(t)
	a := testutil.WriteFile(t, root, "a.css", "h1{color:red;}")
	page := testutil.WriteFile(t, root, "index.html", `<link rel="stylesheet" href="a.css">`)
	s := testSession(t, root)

	proj, err := s.Project(context.Background(), page, nil)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if proj.Path != a || proj.File != nil {
		t.Errorf("projection = %+v, want %s", proj, a)
	}
	if _, err := os.Stat(filepath.Join(root, ".bhc", ".virtual")); !os.IsNotExist(err) {
		t.Errorf("no projection file expected, stat err = %v", err)
	}
}

func TestProject_UsesEditorText(t *testing.T) {
	root, _ := testutil.TestWorkspace(t)
	a := testutil.WriteFile(t, root, "a.css", "h1{color:red;}")
	testutil.WriteFile(t, root, "b.css", "p{color:blue;}")
	page := testutil.WriteFile(t, root, "index.html", `<p>no links on disk</p>`)
	s := testSession(t, root)

	proj, err := s.Project(context.Background(), page, []byte(`<link rel="stylesheet" href="a.css">`))
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if proj.Path != a {
		t.Errorf("path = %q, want %q", proj.Path, a)
	}
}

func TestProject_NoStylesheets(t *testing.T) {
	root, _ := testutil.TestWorkspace(t)
	page := testutil.WriteFile(t, root, "index.html", `<p>plain</p>`)
	s := testSession(t, root)

	_, err := s.Project(context.Background(), page, nil)
	if !errors.Is(err, apperr.ErrNoStylesheets) {
		t.Errorf("err = %v, want ErrNoStylesheets", err)
	}
}

func TestProject_OutsideWorkspace(t *testing.T) {
	root, _ := testutil.TestWorkspace(t)
	s := testSession(t, root)

	_, err := s.Project(context.Background(), filepath.Join(t.TempDir(), "x.html"), nil)
	var ce *apperr.ClassificationError
	if !errors.As(err, &ce) || !errors.Is(err, apperr.ErrNoWorkspace) {
		t.Errorf("err = %v, want ClassificationError", err)
	}
}

func TestWorkspaceFor_InnermostRoot(t *testing.T) {
	outer, _ := testutil.TestWorkspace(t)
	inner := filepath.Join(outer, "site")
	if err := os.MkdirAll(inner, 0o755); err != nil {
		t.Fatal(err)
	}
	s := testSession(t, outer, inner)

	got, err := s.WorkspaceFor(filepath.Join(inner, "index.html"))
	if err != nil || got != inner {
		t.Errorf("WorkspaceFor = %q, %v; want %q", got, err, inner)
	}
	got, err = s.WorkspaceFor(filepath.Join(outer, "other.html"))
	if err != nil || got != outer {
		t.Errorf("WorkspaceFor = %q, %v; want %q", got, err, outer)
	}

	if !s.RemoveRoot(inner) {
		t.Fatal("RemoveRoot returned false")
	}
	if roots := s.Roots(); len(roots) != 1 || roots[0] != outer {
		t.Errorf("roots = %v", roots)
	}
}

func TestSession_IndexAndCSSMetaData(t *testing.T) {
	root, _ := testutil.TestWorkspace(t)
	a := testutil.WriteFile(t, root, "a.css", "h1{color:red;}")
	s := testSession(t, root)

	if _, err := s.Index(root); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("index before pass: err = %v", err)
	}
	if _, err := s.Reconcile(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	index, err := s.Index(root)
	if err != nil || len(index.CSSFiles) != 1 {
		t.Fatalf("Index = %+v, %v", index, err)
	}
	rec, err := s.CSSMetaDataFor(a)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != 1 || rec.Styles[0].Tag != "h1" {
		t.Errorf("record = %+v", rec)
	}

	if _, err := s.Reconcile(context.Background(), filepath.Join(root, "nope")); !errors.Is(err, apperr.ErrNoWorkspace) {
		t.Errorf("unknown root: err = %v", err)
	}
}

func TestReconcileAll(t *testing.T) {
	r1, _ := testutil.TestWorkspace(t)
	r2, _ := testutil.TestWorkspace(t)
	testutil.WriteFile(t, r1, "a.css", "h1{color:red;}")
	testutil.WriteFile(t, r2, "notes.txt", "nothing")
	s := testSession(t, r1, r2)

	reports, err := s.ReconcileAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %+v", reports)
	}
	skipped := 0
	for _, r := range reports {
		if r.Skipped {
			skipped++
		}
	}
	if skipped != 1 {
		t.Errorf("reports = %+v", reports)
	}
}
