// Log rotation tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingFileWriter(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "foc.log")

	w, err := NewRotatingFileWriter(RotationConfig{Filename: logFile})
	if err != nil {
		t.Fatalf("failed to create rotating writer: %v", err)
	}
	defer w.Close()

	msg := "tick 0\n"
	if n, err := w.Write([]byte(msg)); err != nil || n != len(msg) {
		t.Fatalf("write = %d, %v", n, err)
	}
	if w.CurrentSize() != int64(len(msg)) {
		t.Errorf("expected size %d, got %d", len(msg), w.CurrentSize())
	}
	if w.maxSize != 10<<20 || w.maxBackups != 5 {
		t.Errorf("defaults not applied: %d %d", w.maxSize, w.maxBackups)
	}
}

func TestRotatingFileWriterAppends(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "foc.log")
	if err := os.WriteFile(logFile, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewRotatingFileWriter(RotationConfig{Filename: logFile})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if w.CurrentSize() != 4 {
		t.Errorf("existing size not picked up: %d", w.CurrentSize())
	}
}

func fill(t *testing.T, w *RotatingFileWriter, b byte) {
	t.Helper()
	chunk := bytes.Repeat([]byte{b}, 600<<10)
	if _, err := w.Write(chunk); err != nil {
		t.Fatal(err)
	}
}

func TestRotatingFileWriterRotation(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "foc.log")
	w, err := NewRotatingFileWriter(RotationConfig{Filename: logFile, MaxSize: 1, MaxBackups: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	// Each pair of 600 KiB writes overflows 1 MiB
	for _, b := range []byte("abcd") {
		fill(t, w, b)
	}

	check := func(name string, first byte) {
		t.Helper()
		data, err := os.ReadFile(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if data[0] != first {
			t.Errorf("%s starts with %q, want %q", name, data[0], first)
		}
	}
	check(logFile, 'd')
	check(logFile+".1", 'c')
	check(logFile+".2", 'b')
	if _, err := os.Stat(logFile + ".3"); !os.IsNotExist(err) {
		t.Error("backup beyond MaxBackups should not exist")
	}
}

func TestRotatingFileWriterCompress(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "foc.log")
	w, err := NewRotatingFileWriter(RotationConfig{Filename: logFile, MaxSize: 1, Compress: true})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	fill(t, w, 'x')
	fill(t, w, 'y')

	f, err := os.Open(logFile + ".1.gz")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 600<<10 || data[0] != 'x' {
		t.Errorf("unexpected backup content: %d bytes", len(data))
	}
}

func TestRotatingFileWriterClosed(t *testing.T) {
	w, err := NewRotatingFileWriter(RotationConfig{Filename: filepath.Join(t.TempDir(), "foc.log")})
	if err != nil {
		t.Fatal(err)
	}
	w.Close()
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("write after Close should fail")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestTeeToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "foc.log")
	var console bytes.Buffer
	l := New("sim")
	l.SetWriter(&console)

	fw, err := TeeToFile(l, RotationConfig{Filename: logFile})
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Close()

	l.Info("speed %d", 100)
	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, out := range []string{console.String(), string(content)} {
		if !strings.Contains(out, "sim: speed 100") {
			t.Errorf("missing message in %q", out)
		}
	}
}

func TestRotationConfigEmptyFilename(t *testing.T) {
	if _, err := NewRotatingFileWriter(RotationConfig{}); err == nil {
		t.Error("expected error for empty filename")
	}
}
