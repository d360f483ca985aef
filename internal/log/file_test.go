package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func todayFile() string {
	return time.Now().Format(fileDateFmt) + fileSuffix
}

func TestFileWriter_WritesDayStampedFile(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWriter(dir)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	defer fw.Close()

	if _, err := fw.Write([]byte(`{"msg":"test"}` + "\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, todayFile()))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(content), `{"msg":"test"}`) {
		t.Errorf("log file = %q, want the written line", content)
	}
}

func TestFileWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	for _, line := range []string{"first", "second"} {
		fw, err := NewFileWriter(dir)
		if err != nil {
			t.Fatalf("NewFileWriter: %v", err)
		}
		if _, err := fw.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("Write: %v", err)
		}
		fw.Close()
	}

	content, err := os.ReadFile(filepath.Join(dir, todayFile()))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(content), "first") || !strings.Contains(string(content), "second") {
		t.Errorf("log file = %q, want both lines appended", content)
	}
}

func TestFileWriter_LatestSymlink(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWriter(dir)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	defer fw.Close()

	target, err := os.Readlink(filepath.Join(dir, "latest"))
	if err != nil {
		t.Fatalf("reading symlink: %v", err)
	}
	if target != todayFile() {
		t.Errorf("latest -> %s, want %s", target, todayFile())
	}
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()

	old := time.Now().AddDate(0, 0, -30).Format(fileDateFmt) + fileSuffix
	recent := time.Now().AddDate(0, 0, -2).Format(fileDateFmt) + fileSuffix
	for _, name := range []string{old, recent, "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	Cleanup(dir, 14)

	if _, err := os.Stat(filepath.Join(dir, old)); !os.IsNotExist(err) {
		t.Errorf("%s should have been removed", old)
	}
	if _, err := os.Stat(filepath.Join(dir, recent)); err != nil {
		t.Errorf("%s should have been kept: %v", recent, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("non-log file should never be touched")
	}
}

func TestCleanupMissingDir(t *testing.T) {
	// Must not panic or create anything.
	Cleanup(filepath.Join(t.TempDir(), "never-created"), 7)
}
