// Package kv is the string-keyed storage collaborator behind learner
// progress. Values are opaque strings (JSON documents in practice), keys
// never expire, and writes are last-write-wins.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("kv store closed")

// Store is the get/set/remove contract every backend satisfies. Get reports
// a missing key with ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
