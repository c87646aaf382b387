// Package kvtest is an in-memory jetstream.KeyValue for tests. It covers the
// calls the typing and cluster packages make; any other method panics.
package kvtest

import (
	"context"
	"sort"
	"sync"

	"github.com/nats-io/nats.go/jetstream"
)

type Bucket struct {
	jetstream.KeyValue

	mu      sync.Mutex
	entries map[string]entry
	rev     uint64

	// BeforeUpdate runs ahead of the revision check in Update, outside the lock.
	BeforeUpdate func(key string)
}

func New() *Bucket {
	return &Bucket{entries: make(map[string]entry)}
}

type entry struct {
	jetstream.KeyValueEntry
	key   string
	value []byte
	rev   uint64
}

func (e entry) Key() string      { return e.key }
func (e entry) Value() []byte    { return e.value }
func (e entry) Revision() uint64 { return e.rev }

func (b *Bucket) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return e, nil
}

func (b *Bucket) Put(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.write(key, value), nil
}

func (b *Bucket) Create(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	return b.write(key, value), nil
}

func (b *Bucket) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if b.BeforeUpdate != nil {
		b.BeforeUpdate(key)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok || e.rev != revision {
		return 0, jetstream.ErrKeyExists
	}
	return b.write(key, value), nil
}

func (b *Bucket) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

func (b *Bucket) Keys(_ context.Context, _ ...jetstream.WatchOpt) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return nil, jetstream.ErrNoKeysFound
	}
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Revision reports the current revision of key, or 0 when it is absent.
func (b *Bucket) Revision(key string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[key].rev
}

// Value reports the stored value of key as a string, or "" when it is absent.
func (b *Bucket) Value(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.entries[key].value)
}

func (b *Bucket) write(key string, value []byte) uint64 {
	b.rev++
	b.entries[key] = entry{key: key, value: append([]byte(nil), value...), rev: b.rev}
	return b.rev
}
