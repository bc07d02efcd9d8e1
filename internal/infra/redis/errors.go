package redis

import "errors"

var (
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrCacheMiss is returned when a cached value is absent.
	ErrCacheMiss = errors.New("cache miss")
)
