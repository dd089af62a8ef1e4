package pidfile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquire(t *testing.T) {
	t.Run("only one process at a time", func(t *testing.T) {
		repo := t.TempDir()
		pidfile, err := Acquire(repo)
		if err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(pidfile.Path())
		if err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
			t.Fatal("unexpected PID file content", string(data))
		}
		if _, err := Acquire(repo); !errors.Is(err, ErrAlreadyRunning) {
			t.Fatal("not the error we expected", err)
		}
		if err := pidfile.Release(); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(pidfile.Path()); !errors.Is(err, fs.ErrNotExist) {
			t.Fatal("expected the PID file to be gone", err)
		}
		again, err := Acquire(repo)
		if err != nil {
			t.Fatal(err)
		}
		again.Release()
	})

	t.Run("when the repo does not exist", func(t *testing.T) {
		_, err := Acquire(filepath.Join(t.TempDir(), "nonexistent"))
		if err == nil || errors.Is(err, ErrAlreadyRunning) {
			t.Fatal("not the error we expected", err)
		}
	})
}
