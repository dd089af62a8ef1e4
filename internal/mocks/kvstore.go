package mocks

import "github.com/ouinet-go/ouinet/internal/model"

// KeyValueStore is a mockable model.KeyValueStore.
type KeyValueStore struct {
	MockGet func(key string) (value []byte, err error)
	MockSet func(key string, value []byte) (err error)
}

// Get calls MockGet.
func (kvs *KeyValueStore) Get(key string) ([]byte, error) {
	return kvs.MockGet(key)
}

// Set calls MockSet.
func (kvs *KeyValueStore) Set(key string, value []byte) error {
	return kvs.MockSet(key, value)
}

var _ model.KeyValueStore = &KeyValueStore{}
