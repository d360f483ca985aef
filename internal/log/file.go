package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	fileSuffix  = ".jsonl"
	fileDateFmt = "2006-01-02"
)

// FileWriter appends to a per-day debug log file, rotating at midnight
// and keeping a "latest" symlink pointed at the current file.
type FileWriter struct {
	dir string

	mu   sync.Mutex
	file *os.File
	day  string
}

// NewFileWriter creates a FileWriter writing to dir/YYYY-MM-DD.jsonl.
func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating debug log dir: %w", err)
	}

	fw := &FileWriter{dir: dir}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if err := fw.rotateLocked(); err != nil {
		return nil, err
	}
	return fw, nil
}

// Write implements io.Writer, rotating first when the day has changed
// since the last write.
func (fw *FileWriter) Write(p []byte) (n int, err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if time.Now().Format(fileDateFmt) != fw.day {
		if err := fw.rotateLocked(); err != nil {
			return 0, err
		}
	}
	return fw.file.Write(p)
}

// Close closes the current log file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.file != nil {
		return fw.file.Close()
	}
	return nil
}

func (fw *FileWriter) rotateLocked() error {
	if fw.file != nil {
		fw.file.Close()
	}

	day := time.Now().Format(fileDateFmt)
	name := day + fileSuffix
	f, err := os.OpenFile(filepath.Join(fw.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	fw.file = f
	fw.day = day
	fw.relink(name)
	return nil
}

// relink points dir/latest at the current file. Symlink-then-rename so
// readers never see a dangling link; failures are ignored, the symlink
// is a convenience.
func (fw *FileWriter) relink(target string) {
	link := filepath.Join(fw.dir, "latest")
	tmp := link + ".tmp"

	os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return
	}
	_ = os.Rename(tmp, link)
}

// Cleanup deletes day-stamped log files older than retentionDays. Files
// whose names do not parse as a date are left alone.
func Cleanup(dir string, retentionDays int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stamp, ok := strings.CutSuffix(name, fileSuffix)
		if !ok {
			continue
		}
		day, err := time.Parse(fileDateFmt, stamp)
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			os.Remove(filepath.Join(dir, name))
		}
	}
}
