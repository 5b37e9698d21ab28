package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribed.pid")
	pf := NewPIDFile(path)

	if err := pf.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	pid, err := pf.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var rec pidRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("pid file body is not JSON: %v", err)
	}
	if rec.Command == "" {
		t.Error("command missing from pid file")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("created_at missing from pid file")
	}
}

func TestPIDFileReadsLegacyFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribed.pid")
	if err := os.WriteFile(path, []byte("12345\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	pid, err := NewPIDFile(path).Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pid != 12345 {
		t.Errorf("pid = %d, want 12345", pid)
	}
}

func TestPIDFileMissing(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nope.pid"))

	if _, err := pf.Read(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Read err = %v, want ErrNotRunning", err)
	}
	if err := pf.Remove(); err != nil {
		t.Errorf("Remove of missing file: %v", err)
	}
}

func TestPIDFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribed.pid")
	if err := os.WriteFile(path, []byte("not a pid"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewPIDFile(path).Read(); err == nil {
		t.Error("expected error for malformed pid file")
	}
}

func TestSignalErrAlive(t *testing.T) {
	if !signalErrAlive(nil) {
		t.Error("no error means the process is alive")
	}
	// A signal denied for permissions hit a live process owned by someone
	// else; its pid file must be left alone.
	if !signalErrAlive(fmt.Errorf("signal: %w", syscall.EPERM)) {
		t.Error("EPERM means the process is alive")
	}
	if signalErrAlive(syscall.ESRCH) {
		t.Error("ESRCH means the process is gone")
	}
}

func TestPIDFileAliveCleansUpDeadOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribed.pid")
	pf := NewPIDFile(path)

	// A PID that is certain not to exist on any sane system.
	if err := os.WriteFile(path, []byte("999999999"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := pf.Alive(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Alive err = %v, want ErrNotRunning", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("stale pid file was not removed")
	}

	// Our own PID is alive by definition.
	if err := pf.Write(); err != nil {
		t.Fatal(err)
	}
	pid, err := pf.Alive()
	if err != nil {
		t.Fatalf("Alive: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}
