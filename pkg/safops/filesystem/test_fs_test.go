package filesystem_test

import (
	"errors"
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/arthur-debert/safops/pkg/safops/filesystem"
)

func writeThrough(t *testing.T, fsys filesystem.FileSystem, p, content string) {
	t.Helper()
	w, err := fsys.Create(p)
	if err != nil {
		t.Fatalf("Create %s failed: %v", p, err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		t.Fatalf("Write %s failed: %v", p, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close %s failed: %v", p, err)
	}
}

func TestTestFileSystem(t *testing.T) {
	t.Run("Create requires parent directory", func(t *testing.T) {
		tfs := filesystem.NewTestFileSystem()
		if _, err := tfs.Create("/sdcard/a.txt"); !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("Expected ErrNotExist without parent, got %v", err)
		}
		if err := tfs.MkdirAll("/sdcard", 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		writeThrough(t, tfs, "/sdcard/a.txt", "hello")

		data, err := tfs.ReadFile("/sdcard/a.txt")
		if err != nil || string(data) != "hello" {
			t.Errorf("Expected content 'hello', got %q (%v)", data, err)
		}
	})

	t.Run("Synthesized parents are directories", func(t *testing.T) {
		tfs := filesystem.NewTestFileSystem()
		tfs.WriteFile("/sdcard/DCIM/a.jpg", []byte("x"), time.Now())

		if !filesystem.IsDir(tfs, "/sdcard/DCIM") {
			t.Error("Expected /sdcard/DCIM to be a directory")
		}
		entries, err := tfs.ReadDir("/sdcard")
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Name() != "DCIM" {
			t.Errorf("Unexpected entries: %v", entries)
		}
	})

	t.Run("Remove refuses non-empty directories", func(t *testing.T) {
		tfs := filesystem.NewTestFileSystem()
		tfs.WriteFile("/d/a.txt", []byte("x"), time.Now())

		if err := tfs.Remove("/d"); err == nil {
			t.Fatal("Expected error removing non-empty directory")
		}
		if err := tfs.Remove("/d/a.txt"); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if err := tfs.Remove("/d/a.txt"); !filesystem.IsNotExist(err) {
			t.Errorf("Expected not-exist on second remove, got %v", err)
		}
	})

	t.Run("Rename moves directory trees", func(t *testing.T) {
		tfs := filesystem.NewTestFileSystem()
		tfs.WriteFile("/src/dir/a.txt", []byte("a"), time.Now())
		tfs.WriteFile("/src/dir/sub/b.txt", []byte("b"), time.Now())
		if err := tfs.MkdirAll("/dst", 0755); err != nil {
			t.Fatal(err)
		}

		if err := tfs.Rename("/src/dir", "/dst/dir"); err != nil {
			t.Fatalf("Rename failed: %v", err)
		}
		if filesystem.Exists(tfs, "/src/dir/a.txt") {
			t.Error("Expected old path to be gone")
		}
		data, err := tfs.ReadFile("/dst/dir/sub/b.txt")
		if err != nil || string(data) != "b" {
			t.Errorf("Expected moved content 'b', got %q (%v)", data, err)
		}
	})

	t.Run("Rename refuses existing destination", func(t *testing.T) {
		tfs := filesystem.NewTestFileSystem()
		tfs.WriteFile("/a", []byte("a"), time.Now())
		tfs.WriteFile("/b", []byte("b"), time.Now())
		if err := tfs.Rename("/a", "/b"); !errors.Is(err, fs.ErrExist) {
			t.Errorf("Expected ErrExist, got %v", err)
		}
	})

	t.Run("Chtimes updates modification time", func(t *testing.T) {
		tfs := filesystem.NewTestFileSystem()
		tfs.WriteFile("/a", []byte("a"), time.Now())
		when := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
		if err := tfs.Chtimes("/a", when); err != nil {
			t.Fatalf("Chtimes failed: %v", err)
		}
		info, _ := tfs.Stat("/a")
		if !info.ModTime().Equal(when) {
			t.Errorf("Expected mod time %v, got %v", when, info.ModTime())
		}
	})

	t.Run("Injected faults", func(t *testing.T) {
		tfs := filesystem.NewTestFileSystem()
		tfs.WriteFile("/a", []byte("a"), time.Now())
		tfs.FailOn("remove", "/a", fs.ErrPermission)

		if err := tfs.Remove("/a"); !errors.Is(err, fs.ErrPermission) {
			t.Errorf("Expected ErrPermission, got %v", err)
		}
		tfs.ClearFaults()
		if err := tfs.Remove("/a"); err != nil {
			t.Errorf("Expected remove to succeed after clearing faults, got %v", err)
		}
	})
}

func TestListFiles(t *testing.T) {
	tfs := filesystem.NewTestFileSystem()
	tfs.WriteFile("/m/b.txt", []byte("b"), time.Now())
	tfs.WriteFile("/m/sub/a.txt", []byte("a"), time.Now())
	if err := tfs.MkdirAll("/m/empty", 0755); err != nil {
		t.Fatal(err)
	}

	files, err := filesystem.ListFiles(tfs, "/m")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	want := []string{"/m/b.txt", "/m/sub/a.txt"}
	if len(files) != len(want) {
		t.Fatalf("Expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, files[i])
		}
	}

	missing, err := filesystem.ListFiles(tfs, "/m/gone.txt")
	if err != nil || len(missing) != 1 || missing[0] != "/m/gone.txt" {
		t.Errorf("Expected a missing path to stand for itself, got %v (%v)", missing, err)
	}
}
