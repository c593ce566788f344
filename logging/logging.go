// Package logging points the standard logger at stdout plus a size-capped
// file, so daemon output survives restarts without growing unbounded.
package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

// defaultMaxSize caps the live log file; past it the file rolls to a
// single ".1" backup.
const defaultMaxSize = 2 << 20

// RotatingWriter appends to one file and rolls it over when it passes
// maxSize. Writes are serialized; the logger calls Write from many
// goroutines.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Setup wires the standard logger to stdout and a rotating file at path.
func Setup(path string) (*RotatingWriter, error) {
	rw, err := newRotatingWriter(path, defaultMaxSize)
	if err != nil {
		return nil, err
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rw))
	log.SetFlags(log.LstdFlags | log.LUTC)
	return rw, nil
}

func newRotatingWriter(path string, maxSize int64) (*RotatingWriter, error) {
	// A file already past the cap is truncated rather than rolled, so a
	// crash-restart loop cannot keep replacing the backup with junk.
	if info, err := os.Stat(path); err == nil && info.Size() > maxSize {
		os.Truncate(path, 0)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	return &RotatingWriter{
		file:    f,
		path:    path,
		size:    size,
		maxSize: maxSize,
	}, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if w.size > w.maxSize {
		w.rotate()
	}
	return n, err
}

// rotate keeps exactly one backup at path.1.
func (w *RotatingWriter) rotate() {
	w.file.Close()
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
