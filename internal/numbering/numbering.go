// Package numbering produces human-facing document references.
//
//	quotation: KAY-<6 digit timestamp suffix><3 random digits>
//	invoice:   INV-<yyyy><6 digit timestamp suffix><3 random digits>
//
// References are not guaranteed unique; the unique index on the table is the
// arbiter and callers retry the whole write through WithRetry.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/smallbiznis/kay/pkg/db"
	"go.uber.org/fx"
)

const (
	QuotationPrefix = "KAY-"
	InvoicePrefix   = "INV-"

	DefaultMaxAttempts = 5
)

var ErrExhausted = errors.New("numbering_exhausted")

type Generator interface {
	QuotationID(now time.Time) string
	InvoiceNumber(now time.Time) string
}

var Module = fx.Module("numbering",
	fx.Provide(func() Generator { return NewDefault() }),
)

type Default struct {
	mu   sync.Mutex
	rand func(n int) int
}

func NewDefault() *Default {
	return &Default{rand: rand.IntN}
}

func (g *Default) QuotationID(now time.Time) string {
	return QuotationPrefix + g.suffix(now)
}

func (g *Default) InvoiceNumber(now time.Time) string {
	return fmt.Sprintf("%s%04d%s", InvoicePrefix, now.UTC().Year(), g.suffix(now))
}

func (g *Default) suffix(now time.Time) string {
	g.mu.Lock()
	r := g.rand(1000)
	g.mu.Unlock()
	return fmt.Sprintf("%06d%03d", now.UnixMilli()%1_000_000, r)
}

// Sequence is a deterministic generator for tests and fixtures.
type Sequence struct {
	mu        sync.Mutex
	quotation int
	invoice   int
}

func NewSequence() *Sequence {
	return &Sequence{}
}

func (s *Sequence) QuotationID(time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotation++
	return fmt.Sprintf("%s%09d", QuotationPrefix, s.quotation)
}

func (s *Sequence) InvoiceNumber(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoice++
	return fmt.Sprintf("%s%04d%09d", InvoicePrefix, now.UTC().Year(), s.invoice)
}

// WithRetry runs fn until it succeeds, fails with something other than a
// unique-key violation, or attempts run out. fn is expected to run a whole
// transaction so a fresh reference is drawn each time.
func WithRetry(ctx context.Context, attempts int, fn func(attempt int) error) error {
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, attempts, lastErr)
}
