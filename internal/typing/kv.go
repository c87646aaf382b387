package typing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const Bucket = "TYPING"

// KV shares typing signals between instances through a JetStream key-value bucket.
type KV struct {
	kv jetstream.KeyValue
}

func NewKV(ctx context.Context, js jetstream.JetStream) (*KV, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  Bucket,
		Storage: jetstream.MemoryStorage,
		History: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}
	return &KV{kv: kv}, nil
}

func key(userID int64) string { return strconv.FormatInt(userID, 10) }

func (k *KV) Set(ctx context.Context, userID int64, s Signal) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = k.kv.Put(ctx, key(userID), b)
	return err
}

func (k *KV) get(ctx context.Context, id string) (Signal, uint64, error) {
	entry, err := k.kv.Get(ctx, id)
	if err != nil {
		return Signal{}, 0, err
	}
	var s Signal
	if err := json.Unmarshal(entry.Value(), &s); err != nil {
		return Signal{}, 0, err
	}
	return s, entry.Revision(), nil
}

func (k *KV) ClearOnSend(ctx context.Context, userID int64, at time.Time) error {
	s, rev, err := k.get(ctx, key(userID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.IsTyping = false
	s.UpdatedAt = at
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	// a concurrent Set wins over the clear
	if _, err := k.kv.Update(ctx, key(userID), b, rev); err != nil && !errors.Is(err, jetstream.ErrKeyExists) {
		return err
	}
	return nil
}

func (k *KV) All(ctx context.Context, tenantID string) (map[int64]Signal, error) {
	out := make(map[int64]Signal)
	keys, err := k.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	for _, id := range keys {
		userID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		s, _, err := k.get(ctx, id)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if tenantID == "" || s.TenantID == tenantID {
			out[userID] = s
		}
	}
	return out, nil
}
