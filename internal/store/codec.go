package store

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Values are stored msgpack-encoded, so a Get always returns a copy.

func encode(v interface{}) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	return data, nil
}

func decode(data []byte, dst interface{}) error {
	if err := msgpack.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	return nil
}
