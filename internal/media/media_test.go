package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSaveIsDatePartitioned(t *testing.T) {
	s := newTestStore(t)
	rel, err := s.Save(Captures, ".PNG", []byte("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(rel, "captures/2024-03-09/") || !strings.HasSuffix(rel, ".png") {
		t.Fatalf("unexpected reference %q", rel)
	}
	p, _ := s.Abs(rel)
	got, err := os.ReadFile(p)
	if err != nil || string(got) != "x" {
		t.Fatalf("read back: %v %q", err, got)
	}

	other, _ := s.Save(Captures, "png", []byte("y"))
	if other == rel {
		t.Fatalf("two saves must not share a name")
	}
}

func TestSaveTempOverwrites(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()
	first, err := s.SaveTemp(id, "jpg", []byte("one"))
	if err != nil {
		t.Fatalf("save temp: %v", err)
	}
	second, _ := s.SaveTemp(id, "jpg", []byte("two"))
	if first != second {
		t.Fatalf("temp path must be stable: %q vs %q", first, second)
	}
	if first != "temp_images/user_"+id.String()+"_screenshot.jpg" {
		t.Fatalf("unexpected temp path %q", first)
	}
	p, _ := s.Abs(first)
	got, _ := os.ReadFile(p)
	if string(got) != "two" {
		t.Fatalf("expected overwrite, got %q", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(p))
	if len(entries) != 1 {
		t.Fatalf("leftover temp files: %d", len(entries))
	}
}

func TestAbsRejectsEscapes(t *testing.T) {
	s := newTestStore(t)
	for _, rel := range []string{"", "/", "../../etc/passwd", "captures/../../x"} {
		p, err := s.Abs(rel)
		if err == nil && !strings.HasPrefix(p, s.Root()) {
			t.Fatalf("%q resolved outside root: %s", rel, p)
		}
	}
	if _, err := s.Abs(""); err != ErrBadPath {
		t.Fatalf("empty reference must be rejected, got %v", err)
	}
}

func TestRemoveMissingIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.Remove("captures/2024-03-09/nope.png"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
	rel, _ := s.Save(AppIcons, "webp", []byte("i"))
	if err := s.Remove(rel); err != nil {
		t.Fatalf("remove: %v", err)
	}
	p, _ := s.Abs(rel)
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("file still present")
	}
}
