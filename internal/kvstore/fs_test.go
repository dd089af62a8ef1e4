package kvstore

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestFileSystemGood(t *testing.T) {
	kvstore, err := NewFS(filepath.Join(t.TempDir(), "identity"))
	if err != nil {
		t.Fatal(err)
	}
	value := []byte("foobar")
	if err := kvstore.Set("antani", value); err != nil {
		t.Fatal(err)
	}
	ovalue, err := kvstore.Get("antani")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ovalue, value) {
		t.Fatal("invalid value")
	}
	if runtime.GOOS != "windows" {
		stat, err := os.Stat(filepath.Join(kvstore.basedir, "antani"))
		if err != nil {
			t.Fatal(err)
		}
		if stat.Mode().Perm() != 0600 {
			t.Fatal("unexpected permissions", stat.Mode().Perm())
		}
	}
}

func TestFileSystemNoSuchKey(t *testing.T) {
	kvstore, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	value, err := kvstore.Get("antani")
	if !errors.Is(err, ErrNoSuchKey) {
		t.Fatal("not the error we expected", err)
	}
	if value != nil {
		t.Fatal("expected nil value")
	}
}

func TestFileSystemInvalidKey(t *testing.T) {
	kvstore, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", ".", "..", "../antani", "a/b"} {
		if err := kvstore.Set(key, []byte("x")); !errors.Is(err, ErrInvalidKey) {
			t.Fatal("for", key, "not the error we expected", err)
		}
		if _, err := kvstore.Get(key); !errors.Is(err, ErrInvalidKey) {
			t.Fatal("for", key, "not the error we expected", err)
		}
	}
}

func TestFileSystemWithFailure(t *testing.T) {
	expect := errors.New("mocked error")
	mkdir := func(path string, perm fs.FileMode) error {
		return expect
	}
	kvstore, err := newFileSystem(t.TempDir(), mkdir)
	if !errors.Is(err, expect) {
		t.Fatal("not the error we expected", err)
	}
	if kvstore != nil {
		t.Fatal("expected nil here")
	}
}

func TestMemory(t *testing.T) {
	kvs := &Memory{}
	if _, err := kvs.Get("antani"); !errors.Is(err, ErrNoSuchKey) {
		t.Fatal("not the error we expected", err)
	}
	if err := kvs.Set("antani", []byte("mascetti")); err != nil {
		t.Fatal(err)
	}
	value, err := kvs.Get("antani")
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != "mascetti" {
		t.Fatal("unexpected value")
	}
}
