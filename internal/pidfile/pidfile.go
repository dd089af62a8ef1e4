// Package pidfile implements PID files guarding against running two
// processes that use the same repo directory.
package pidfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// Name is the name of the PID file inside the repo directory.
const Name = "pid"

// ErrAlreadyRunning indicates that the PID file already exists.
var ErrAlreadyRunning = errors.New("pidfile: existing PID file")

// File is an acquired PID file.
type File struct {
	path string
}

// Acquire creates the PID file inside repo. It fails with
// [ErrAlreadyRunning] when the file already exists.
func Acquire(repo string) (*File, error) {
	path := filepath.Join(repo, Name)
	fp, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%w %s; another process may be running, "+
			"otherwise please remove the file", ErrAlreadyRunning, path)
	}
	if err != nil {
		return nil, err
	}
	if _, err := fp.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		fp.Close()
		os.Remove(path)
		return nil, err
	}
	if err := fp.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}
	return &File{path: path}, nil
}

// Path returns the path of the PID file.
func (f *File) Path() string {
	return f.path
}

// Release removes the PID file.
func (f *File) Release() error {
	return os.Remove(f.path)
}
