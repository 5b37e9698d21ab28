package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrNotRunning reports that no live daemon owns the PID file.
var ErrNotRunning = errors.New("daemon is not running")

// PIDFile records which process owns the daemon role. The file body is JSON
// so future fields do not break older readers; a body that is just a number
// is accepted for files written by earlier versions.
type PIDFile struct {
	path string
}

type pidRecord struct {
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPIDFile returns a PIDFile at path. Nothing is written until Write.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// DefaultPIDPath places the PID file under the user's runtime or home
// directory.
func DefaultPIDPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "scribed.pid")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "scribed.pid")
	}
	return filepath.Join(home, ".scribed.pid")
}

// Write records the current process as the daemon owner.
func (p *PIDFile) Write() error {
	rec := pidRecord{
		PID:       os.Getpid(),
		Command:   strings.Join(os.Args, " "),
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pid file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create pid file directory: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Read returns the PID stored in the file. It accepts both the JSON body and
// the bare-integer body older releases wrote.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("read pid file: %w", err)
	}

	var rec pidRecord
	if err := json.Unmarshal(data, &rec); err == nil && rec.PID > 0 {
		return rec.PID, nil
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s is malformed", p.path)
	}
	return pid, nil
}

// Remove deletes the PID file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// Alive reports the PID of a live daemon, cleaning up after one that died
// without removing its file.
func (p *PIDFile) Alive() (int, error) {
	pid, err := p.Read()
	if err != nil {
		return 0, err
	}
	if !processAlive(pid) {
		_ = p.Remove()
		return 0, ErrNotRunning
	}
	return pid, nil
}

// processAlive checks pid with signal 0. EPERM means the process exists but
// belongs to another user, so it counts as alive.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return signalErrAlive(proc.Signal(syscall.Signal(0)))
}

func signalErrAlive(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
