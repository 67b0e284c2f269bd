package store

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	"github.com/layer-3/walletgate/core"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
)

var nonceBucket = []byte("nonces")

// BoltStore keeps nonces in a bbolt file so pending challenges survive a
// restart. bbolt allows a single writer, so it is not suitable for several
// instances sharing one file; use RedisStore for that.
type BoltStore struct {
	bdb    *bbolt.DB
	opts   options
	logger zerolog.Logger
}

type boltNonce struct {
	Value     string    `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewBoltStore opens (or creates) the bbolt database at path
func NewBoltStore(path string, logger zerolog.Logger, opts ...Option) (*BoltStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	bdb, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database %q: %w", path, err)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(nonceBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("failed to create nonce bucket: %w", err)
	}

	return &BoltStore{bdb: bdb, opts: o, logger: logger}, nil
}

// Issue replaces the pending nonce for address with a fresh one
func (s *BoltStore) Issue(ctx context.Context, address string) (core.Nonce, error) {
	nonce, err := newNonce(address, s.opts)
	if err != nil {
		return core.Nonce{}, err
	}

	data, err := json.Marshal(boltNonce{
		Value:     nonce.Value,
		IssuedAt:  nonce.IssuedAt,
		ExpiresAt: nonce.ExpiresAt,
	})
	if err != nil {
		return core.Nonce{}, fmt.Errorf("failed to encode nonce: %w", err)
	}

	err = s.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(nonceBucket).Put([]byte(nonce.Address), data)
	})
	if err != nil {
		return core.Nonce{}, fmt.Errorf("failed to store nonce: %w", err)
	}

	return nonce, nil
}

// Peek returns the pending nonce for address
func (s *BoltStore) Peek(ctx context.Context, address string) (core.Nonce, error) {
	address = core.NormalizeAddress(address)

	var nonce core.Nonce
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		stored, err := s.get(tx, address)
		if err != nil {
			return err
		}
		nonce = core.Nonce{
			Address:   address,
			Value:     stored.Value,
			IssuedAt:  stored.IssuedAt,
			ExpiresAt: stored.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return core.Nonce{}, err
	}

	if nonce.Expired(s.opts.clock.Now()) {
		return core.Nonce{}, core.ErrNonceNotFound
	}
	return nonce, nil
}

// Consume redeems value for address. The check and the delete share one
// write transaction, and bbolt serialises writers.
func (s *BoltStore) Consume(ctx context.Context, address, value string) error {
	address = core.NormalizeAddress(address)

	// Returning an error from Update rolls the transaction back, so the
	// outcome is carried out of the closure separately.
	var outcome error
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		stored, err := s.get(tx, address)
		if err != nil {
			outcome = err
			return nil
		}

		bkt := tx.Bucket(nonceBucket)
		if !s.opts.clock.Now().Before(stored.ExpiresAt) {
			outcome = core.ErrNonceExpired
			return bkt.Delete([]byte(address))
		}

		if subtle.ConstantTimeCompare([]byte(stored.Value), []byte(value)) != 1 {
			outcome = core.ErrNonceMismatch
			return nil
		}

		return bkt.Delete([]byte(address))
	})
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}

	return outcome
}

func (s *BoltStore) get(tx *bbolt.Tx, address string) (boltNonce, error) {
	data := tx.Bucket(nonceBucket).Get([]byte(address))
	if data == nil {
		return boltNonce{}, core.ErrNonceNotFound
	}

	var stored boltNonce
	if err := json.Unmarshal(data, &stored); err != nil {
		return boltNonce{}, fmt.Errorf("failed to decode nonce for %q: %w", address, err)
	}
	return stored, nil
}

// Run purges expired nonces until ctx is done
func (s *BoltStore) Run(ctx context.Context) error {
	t := time.NewTicker(cleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.cleanup(); err != nil {
				s.logger.Error().Err(err).Msg("error during bbolt cleanup")
			}
		}
	}
}

func (s *BoltStore) cleanup() error {
	now := s.opts.clock.Now()

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(nonceBucket)
		var expired [][]byte

		err := bkt.ForEach(func(key, data []byte) error {
			var stored boltNonce
			if err := json.Unmarshal(data, &stored); err != nil {
				s.logger.Warn().Str("address", string(key)).Msg("dropping undecodable nonce")
				expired = append(expired, append([]byte(nil), key...))
				return nil
			}
			if !now.Before(stored.ExpiresAt) {
				expired = append(expired, append([]byte(nil), key...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, key := range expired {
			if err := bkt.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the underlying database file
func (s *BoltStore) Close() error {
	return s.bdb.Close()
}
