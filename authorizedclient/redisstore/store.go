// Package redisstore shares authorized clients between service instances through redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-obo-blueprints/authorizedclient"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces the entries written by this store
const DefaultKeyPrefix = "obo:authorized-client:"

var _ authorizedclient.Store = (*Store)(nil)

// Store keeps each authorized client as a JSON value that expires together with its
// access token. Entries holding a refresh token are kept without a TTL so they can
// still be renewed after the access token lapsed.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

type Option func(*Store)

func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.keyPrefix = prefix
	}
}

func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.now = nowFunc
	}
}

func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a client for addr and checks it answers
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[redisstore.Connect] failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *Store) Load(ctx context.Context, key authorizedclient.Key) (*authorizedclient.AuthorizedClient, error) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[Store.Load] %s: %w", key, err)
	}

	var client authorizedclient.AuthorizedClient
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, fmt.Errorf("[Store.Load] corrupt entry %s: %w", key, err)
	}
	return &client, nil
}

func (s *Store) Save(ctx context.Context, client *authorizedclient.AuthorizedClient) error {
	if err := authorizedclient.ValidateForSave(client); err != nil {
		return err
	}

	var ttl time.Duration
	if client.AccessToken.RefreshToken == "" {
		ttl = client.AccessToken.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			// nothing worth keeping
			return s.Remove(ctx, client.Key())
		}
	}

	data, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("[Store.Save] %w", err)
	}
	if err := s.client.Set(ctx, s.redisKey(client.Key()), data, ttl).Err(); err != nil {
		return fmt.Errorf("[Store.Save] %s: %w", client.Key(), err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key authorizedclient.Key) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("[Store.Remove] %s: %w", key, err)
	}
	return nil
}

func (s *Store) redisKey(key authorizedclient.Key) string {
	return s.keyPrefix + key.String()
}
