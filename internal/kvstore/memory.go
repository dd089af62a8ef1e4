package kvstore

import (
	"bytes"
	"errors"
	"sync"

	"github.com/ouinet-go/ouinet/internal/model"
)

// ErrNoSuchKey indicates that there's no value for the given key.
var ErrNoSuchKey = errors.New("no such key")

// Memory is an in-memory key-value store whose contents are lost on
// exit. The zero value is ready to use.
type Memory struct {
	m  map[string][]byte
	mu sync.Mutex
}

var _ model.KeyValueStore = &Memory{}

// Get returns a copy of the specified key's value. In case of error, the
// error type is such that errors.Is(err, ErrNoSuchKey).
func (kvs *Memory) Get(key string) ([]byte, error) {
	kvs.mu.Lock()
	defer kvs.mu.Unlock()
	value, ok := kvs.m[key]
	if !ok {
		return nil, ErrNoSuchKey
	}
	return bytes.Clone(value), nil
}

// Set sets a copy of value into the key-value store.
func (kvs *Memory) Set(key string, value []byte) error {
	kvs.mu.Lock()
	defer kvs.mu.Unlock()
	if kvs.m == nil {
		kvs.m = make(map[string][]byte)
	}
	kvs.m[key] = bytes.Clone(value)
	return nil
}
