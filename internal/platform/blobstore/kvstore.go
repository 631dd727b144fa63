package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/kalinga/kalinga/internal/platform/kv"
)

// KVBlobStore keeps blobs in the configured kv backend so submissions survive
// restarts alongside the progress data. Content is stored base64-encoded
// inside a JSON envelope under "blob:<key>".
type KVBlobStore struct {
	kv      kv.Store
	maxSize int64
}

func NewKVBlobStore(store kv.Store, maxSize int64) *KVBlobStore {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &KVBlobStore{kv: store, maxSize: maxSize}
}

type envelope struct {
	Metadata Metadata `json:"metadata"`
	Content  []byte   `json:"content"`
}

func blobKey(key string) string { return "blob:" + key }

func (s *KVBlobStore) Put(ctx context.Context, key string, meta Metadata, content io.Reader) (*Metadata, error) {
	meta, data, err := prepare(key, meta, content, s.maxSize, time.Now())
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(envelope{Metadata: meta, Content: data})
	if err != nil {
		return nil, fmt.Errorf("encode blob: %w", err)
	}
	if err := s.kv.Set(ctx, blobKey(key), string(raw)); err != nil {
		return nil, fmt.Errorf("store blob %s: %w", key, err)
	}
	return &meta, nil
}

func (s *KVBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, *Metadata, error) {
	raw, ok, err := s.kv.Get(ctx, blobKey(key))
	if err != nil {
		return nil, nil, fmt.Errorf("load blob %s: %w", key, err)
	}
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Unreadable entries are treated as absent.
		return nil, nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(env.Content)), &env.Metadata, nil
}

func (s *KVBlobStore) Delete(ctx context.Context, key string) error {
	_, ok, err := s.kv.Get(ctx, blobKey(key))
	if err != nil {
		return fmt.Errorf("load blob %s: %w", key, err)
	}
	if !ok {
		return ErrBlobNotFound
	}
	return s.kv.Remove(ctx, blobKey(key))
}
