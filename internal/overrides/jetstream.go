package overrides

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the JetStream KV bucket holding overrides.
const DefaultBucket = "EXERCISE_OVERRIDES"

// JetStreamKV stores values in a NATS JetStream key-value bucket. The bucket
// is opened on first use, so a server that is down at startup only makes
// calls fail until it is reachable.
type JetStreamKV struct {
	js      jetstream.JetStream
	bucket  string
	timeout time.Duration

	mu sync.Mutex
	kv jetstream.KeyValue
}

func NewJetStreamKV(js jetstream.JetStream, bucket string, timeout time.Duration) *JetStreamKV {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &JetStreamKV{js: js, bucket: bucket, timeout: timeout}
}

// Open opens the bucket, creating it when it does not exist yet.
func (s *JetStreamKV) Open(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.open(ctx)
	return err
}

func (s *JetStreamKV) open(ctx context.Context) (jetstream.KeyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kv != nil {
		return s.kv, nil
	}
	kv, err := getOrCreateBucket(ctx, s.js, s.bucket)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", s.bucket, err)
	}
	s.kv = kv
	return kv, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, err
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Exercise overrides and custom exercises",
		History:     5,
	})
}

func (s *JetStreamKV) Get(ctx context.Context, key string) (*Entry, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	kv, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, nil
		}
		return nil, err
	}
	return &Entry{Key: key, Value: entry.Value(), UpdatedAt: entry.Created()}, nil
}

func (s *JetStreamKV) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	kv, err := s.open(ctx)
	if err != nil {
		return err
	}
	_, err = kv.Put(ctx, key, value)
	return err
}

func (s *JetStreamKV) Create(ctx context.Context, key string, value []byte) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	kv, err := s.open(ctx)
	if err != nil {
		return err
	}
	if _, err := kv.Create(ctx, key, value); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return ErrExists
		}
		return err
	}
	return nil
}

func (s *JetStreamKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	kv, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []string{}, nil
		}
		return nil, err
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *JetStreamKV) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	kv, err := s.open(ctx)
	if err != nil {
		return err
	}
	_, err = kv.Status(ctx)
	return err
}
