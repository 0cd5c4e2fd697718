//go:build linux

package printer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

// openFIFO creates a named pipe standing in for a printer that has stopped
// reading. The returned end is opened read-write so it never sees EOF.
func openFIFO(t *testing.T) (string, *os.File) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lp0")
	if err := syscall.Mkfifo(path, 0o600); err != nil {
		t.Skipf("mkfifo: %v", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("open fifo: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return path, f
}

func drain(t *testing.T, f *os.File) []byte {
	t.Helper()
	if err := f.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
		t.Fatalf("fifo is not pollable: %v", err)
	}
	var out bytes.Buffer
	buf := make([]byte, 64<<10)
	for {
		n, err := f.Read(buf)
		out.Write(buf[:n])
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return out.Bytes()
		}
		if err != nil {
			t.Fatalf("read fifo: %v", err)
		}
	}
}

func TestUSBPrinter_TimedOutWriteIsCancelled(t *testing.T) {
	path, device := openFIFO(t)
	p := NewUSBPrinter("Stalled", path)

	// Larger than the pipe buffer, so the write blocks until cancelled.
	stuck := bytes.Repeat([]byte("1"), 1<<20)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	err := p.Print(ctx, stuck)
	cancel()
	if err == nil {
		t.Fatalf("blocked write reported success")
	}
	if !p.Available(context.Background()) {
		t.Fatalf("printer still busy after the write was cancelled")
	}

	partial := drain(t, device)
	if len(partial) >= len(stuck) {
		t.Fatalf("cancelled job was fully written")
	}

	ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Print(ctx, []byte("JOB2")); err != nil {
		t.Fatalf("print after timeout: %v", err)
	}

	// Nothing from the cancelled job may arrive after the next one.
	time.Sleep(50 * time.Millisecond)
	if got := drain(t, device); string(got) != "JOB2" {
		t.Fatalf("device got %q, want only JOB2", got)
	}
}
