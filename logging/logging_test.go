package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteRotatesPastCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	rw, err := newRotatingWriter(path, 64)
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	defer rw.Close()

	line := []byte("0123456789abcdef\n")
	for i := 0; i < 6; i++ {
		if _, err := rw.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected a .1 backup after rotation: %v", err)
	}
	if !bytes.Contains(backup, []byte("0123456789abcdef")) {
		t.Error("backup does not contain the rolled lines")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat live file: %v", err)
	}
	if info.Size() > 64 {
		t.Errorf("live file is %d bytes, cap is 64", info.Size())
	}
}

func TestOversizedFileTruncatedOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), 200), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	rw, err := newRotatingWriter(path, 64)
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	defer rw.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("oversized file not truncated on open, size %d", info.Size())
	}
}
