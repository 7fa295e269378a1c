// Size based log file rotation
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// RotationConfig configures a RotatingFileWriter.
type RotationConfig struct {
	Filename string

	// MaxSize is the size in megabytes that triggers rotation (default: 10)
	MaxSize int

	// MaxBackups is the number of rotated files kept (default: 5)
	MaxBackups int

	// Compress gzips rotated files
	Compress bool
}

// RotatingFileWriter appends to a file and shifts it to name.1, name.2, ...
// once it would grow past the size limit. The oldest backup is removed.
type RotatingFileWriter struct {
	mu         sync.Mutex
	filename   string
	maxSize    int64
	maxBackups int
	compress   bool

	file *os.File
	size int64
}

// NewRotatingFileWriter opens cfg.Filename for appending, creating its
// directory if needed.
func NewRotatingFileWriter(cfg RotationConfig) (*RotatingFileWriter, error) {
	if cfg.Filename == "" {
		return nil, fmt.Errorf("log rotation: filename is required")
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}

	w := &RotatingFileWriter{
		filename:   cfg.Filename,
		maxSize:    int64(cfg.MaxSize) << 20,
		maxBackups: cfg.MaxBackups,
		compress:   cfg.Compress,
	}
	if err := os.MkdirAll(filepath.Dir(w.filename), 0o755); err != nil {
		return nil, fmt.Errorf("log rotation: %w", err)
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingFileWriter) open() error {
	f, err := os.OpenFile(w.filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("log rotation: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("log rotation: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// Write implements io.Writer. A single write larger than the limit goes
// to a fresh file.
func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingFileWriter) backupName(i int) string {
	name := fmt.Sprintf("%s.%d", w.filename, i)
	if w.compress {
		name += ".gz"
	}
	return name
}

func (w *RotatingFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("log rotation: %w", err)
	}
	w.file = nil

	os.Remove(w.backupName(w.maxBackups))
	for i := w.maxBackups - 1; i >= 1; i-- {
		os.Rename(w.backupName(i), w.backupName(i+1))
	}

	var err error
	if w.compress {
		err = gzipFile(w.filename, w.backupName(1))
	} else {
		err = os.Rename(w.filename, w.backupName(1))
	}
	if err != nil {
		if oerr := w.open(); oerr != nil {
			return oerr
		}
		return fmt.Errorf("log rotation: %w", err)
	}
	return w.open()
}

// gzipFile compresses src into dst and removes src.
func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Close closes the current file. Later writes fail.
func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Sync flushes the current file.
func (w *RotatingFileWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// CurrentSize returns the size of the current file.
func (w *RotatingFileWriter) CurrentSize() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *RotatingFileWriter) Filename() string {
	return w.filename
}

// TeeToFile makes l write to a rotating file in addition to its current
// writer. Colors are disabled. Close the returned writer on exit.
func TeeToFile(l *Logger, cfg RotationConfig) (*RotatingFileWriter, error) {
	fw, err := NewRotatingFileWriter(cfg)
	if err != nil {
		return nil, err
	}
	l.c.mu.Lock()
	l.c.writer = io.MultiWriter(l.c.writer, fw)
	l.c.colorize = false
	l.c.mu.Unlock()
	return fw, nil
}
