package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil)
)

// envelope is the serialized form of an entry in byte tiers.
type envelope[T any] struct {
	Value        T         `json:"v"`
	CreatedAt    time.Time `json:"c"`
	ExpiresAt    time.Time `json:"e"`
	StaleUntil   time.Time `json:"s"`
	Cost         int64     `json:"cost,omitempty"`
	Tags         []string  `json:"t,omitempty"`
	Dependencies []string  `json:"d,omitempty"`
}

func encodeEntry[T any](e Entry[T]) ([]byte, error) {
	raw, err := json.Marshal(envelope[T]{
		Value:        e.Value,
		CreatedAt:    e.CreatedAt,
		ExpiresAt:    e.ExpiresAt,
		StaleUntil:   e.StaleUntil,
		Cost:         int64(e.Cost),
		Tags:         e.Tags,
		Dependencies: e.Dependencies,
	})
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func decodeEntry[T any](key string, data []byte) (Entry[T], error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return Entry[T]{}, fmt.Errorf("decompress cache entry: %w", err)
	}
	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return Entry[T]{}, fmt.Errorf("decode cache entry: %w", err)
	}
	return Entry[T]{
		Key:          key,
		Value:        env.Value,
		CreatedAt:    env.CreatedAt,
		ExpiresAt:    env.ExpiresAt,
		StaleUntil:   env.StaleUntil,
		LastAccess:   env.CreatedAt,
		Cost:         time.Duration(env.Cost),
		Tags:         env.Tags,
		Dependencies: env.Dependencies,
	}, nil
}
