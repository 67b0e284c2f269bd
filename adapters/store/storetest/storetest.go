// Package storetest holds the behaviour every nonce store backend must share.
package storetest

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/ports"
)

// TTL is the nonce lifetime Builder implementations must configure.
const TTL = 5 * time.Minute

// Builder returns a fresh store that reads time from clock and issues nonces
// valid for TTL.
type Builder func(t *testing.T, clock core.Clock) ports.NonceStore

// Common runs the shared nonce store suite against build.
func Common(t *testing.T, build Builder) {
	const address = "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01"

	for _, tt := range []struct {
		name string
		doer func(t *testing.T, s ports.NonceStore, clock *core.ManualClock)
	}{
		{
			name: "issue peek consume",
			doer: func(t *testing.T, s ports.NonceStore, clock *core.ManualClock) {
				if _, err := s.Peek(t.Context(), address); !errors.Is(err, core.ErrNonceNotFound) {
					t.Fatalf("peek before issue: want ErrNonceNotFound, got %v", err)
				}

				nonce, err := s.Issue(t.Context(), address)
				if err != nil {
					t.Fatal(err)
				}
				if len(nonce.Value) < 16 {
					t.Errorf("nonce value %q is too short", nonce.Value)
				}
				if nonce.Address != strings.ToLower(address) {
					t.Errorf("nonce address = %q, want lowercase %q", nonce.Address, strings.ToLower(address))
				}
				if !nonce.ExpiresAt.Equal(clock.Now().Add(TTL)) {
					t.Errorf("expires at = %s, want %s", nonce.ExpiresAt, clock.Now().Add(TTL))
				}

				peeked, err := s.Peek(t.Context(), strings.ToLower(address))
				if err != nil {
					t.Fatal(err)
				}
				if peeked.Value != nonce.Value {
					t.Errorf("peek value = %q, want %q", peeked.Value, nonce.Value)
				}

				if err := s.Consume(t.Context(), address, nonce.Value); err != nil {
					t.Fatalf("consume: %v", err)
				}
				if _, err := s.Peek(t.Context(), address); !errors.Is(err, core.ErrNonceNotFound) {
					t.Errorf("peek after consume: want ErrNonceNotFound, got %v", err)
				}
			},
		},
		{
			name: "single use",
			doer: func(t *testing.T, s ports.NonceStore, clock *core.ManualClock) {
				nonce, err := s.Issue(t.Context(), address)
				if err != nil {
					t.Fatal(err)
				}
				if err := s.Consume(t.Context(), address, nonce.Value); err != nil {
					t.Fatalf("first consume: %v", err)
				}
				if err := s.Consume(t.Context(), address, nonce.Value); !errors.Is(err, core.ErrNonceNotFound) {
					t.Errorf("second consume: want ErrNonceNotFound, got %v", err)
				}
				if err := s.Consume(t.Context(), address, "something-else"); !errors.Is(err, core.ErrNonceNotFound) {
					t.Errorf("consume with other value: want ErrNonceNotFound, got %v", err)
				}
			},
		},
		{
			name: "reissue invalidates previous nonce",
			doer: func(t *testing.T, s ports.NonceStore, clock *core.ManualClock) {
				first, err := s.Issue(t.Context(), address)
				if err != nil {
					t.Fatal(err)
				}
				second, err := s.Issue(t.Context(), address)
				if err != nil {
					t.Fatal(err)
				}
				if first.Value == second.Value {
					t.Fatal("two issues returned the same value")
				}
				if err := s.Consume(t.Context(), address, first.Value); !errors.Is(err, core.ErrNonceMismatch) {
					t.Errorf("consume stale value: want ErrNonceMismatch, got %v", err)
				}
				if err := s.Consume(t.Context(), address, second.Value); err != nil {
					t.Errorf("consume fresh value: %v", err)
				}
			},
		},
		{
			name: "mismatch keeps nonce",
			doer: func(t *testing.T, s ports.NonceStore, clock *core.ManualClock) {
				nonce, err := s.Issue(t.Context(), address)
				if err != nil {
					t.Fatal(err)
				}
				if err := s.Consume(t.Context(), address, "deadbeef"); !errors.Is(err, core.ErrNonceMismatch) {
					t.Fatalf("want ErrNonceMismatch, got %v", err)
				}
				if err := s.Consume(t.Context(), address, nonce.Value); err != nil {
					t.Errorf("consume after mismatch: %v", err)
				}
			},
		},
		{
			name: "valid just before ttl",
			doer: func(t *testing.T, s ports.NonceStore, clock *core.ManualClock) {
				nonce, err := s.Issue(t.Context(), address)
				if err != nil {
					t.Fatal(err)
				}
				clock.Advance(TTL - time.Second)
				if err := s.Consume(t.Context(), address, nonce.Value); err != nil {
					t.Errorf("consume at ttl-1s: %v", err)
				}
			},
		},
		{
			name: "expired after ttl",
			doer: func(t *testing.T, s ports.NonceStore, clock *core.ManualClock) {
				nonce, err := s.Issue(t.Context(), address)
				if err != nil {
					t.Fatal(err)
				}
				clock.Advance(TTL + time.Second)
				if _, err := s.Peek(t.Context(), address); !errors.Is(err, core.ErrNonceNotFound) {
					t.Errorf("peek expired: want ErrNonceNotFound, got %v", err)
				}
				if err := s.Consume(t.Context(), address, nonce.Value); !errors.Is(err, core.ErrNonceExpired) {
					t.Errorf("consume at ttl+1s: want ErrNonceExpired, got %v", err)
				}
				if err := s.Consume(t.Context(), address, nonce.Value); !errors.Is(err, core.ErrNonceNotFound) {
					t.Errorf("consume expired twice: want ErrNonceNotFound, got %v", err)
				}
			},
		},
		{
			name: "addresses are independent",
			doer: func(t *testing.T, s ports.NonceStore, clock *core.ManualClock) {
				other := "0x1111111111111111111111111111111111111111"
				a, err := s.Issue(t.Context(), address)
				if err != nil {
					t.Fatal(err)
				}
				b, err := s.Issue(t.Context(), other)
				if err != nil {
					t.Fatal(err)
				}
				if err := s.Consume(t.Context(), other, a.Value); !errors.Is(err, core.ErrNonceMismatch) {
					t.Errorf("cross-address consume: want ErrNonceMismatch, got %v", err)
				}
				if err := s.Consume(t.Context(), other, b.Value); err != nil {
					t.Error(err)
				}
				if err := s.Consume(t.Context(), address, a.Value); err != nil {
					t.Error(err)
				}
			},
		},
		{
			name: "concurrent consume has one winner",
			doer: func(t *testing.T, s ports.NonceStore, clock *core.ManualClock) {
				nonce, err := s.Issue(t.Context(), address)
				if err != nil {
					t.Fatal(err)
				}

				var (
					wg       sync.WaitGroup
					winners  atomic.Int32
					notFound atomic.Int32
				)
				for i := 0; i < 32; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						err := s.Consume(t.Context(), address, nonce.Value)
						switch {
						case err == nil:
							winners.Add(1)
						case errors.Is(err, core.ErrNonceNotFound):
							notFound.Add(1)
						default:
							t.Errorf("unexpected consume error: %v", err)
						}
					}()
				}
				wg.Wait()

				if winners.Load() != 1 {
					t.Errorf("winners = %d, want 1", winners.Load())
				}
				if notFound.Load() != 31 {
					t.Errorf("losers with ErrNonceNotFound = %d, want 31", notFound.Load())
				}
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			clock := core.NewManualClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
			tt.doer(t, build(t, clock), clock)
		})
	}
}
