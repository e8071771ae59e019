package numbering

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	quotationPattern = regexp.MustCompile(`^KAY-\d{9}$`)
	invoicePattern   = regexp.MustCompile(`^INV-2026\d{9}$`)
)

func TestDefaultFormats(t *testing.T) {
	g := NewDefault()
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		assert.Regexp(t, quotationPattern, g.QuotationID(now))
		assert.Regexp(t, invoicePattern, g.InvoiceNumber(now))
	}
}

func TestDefaultUsesInjectedRandomness(t *testing.T) {
	g := &Default{rand: func(int) int { return 7 }}
	now := time.UnixMilli(1_700_000_123_456).UTC()

	assert.Equal(t, "KAY-123456007", g.QuotationID(now))
	assert.Equal(t, "INV-2023123456007", g.InvoiceNumber(now))
}

func TestSequenceIsDeterministic(t *testing.T) {
	s := NewSequence()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "KAY-000000001", s.QuotationID(now))
	assert.Equal(t, "KAY-000000002", s.QuotationID(now))
	assert.Equal(t, "INV-2026000000001", s.InvoiceNumber(now))
	assert.Regexp(t, quotationPattern, s.QuotationID(now))
}

func TestWithRetryRetriesDuplicateKeys(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 5, func(attempt int) error {
		calls++
		if attempt < 2 {
			return gorm.ErrDuplicatedKey
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := WithRetry(context.Background(), 5, func(int) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhausts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, func(int) error {
		calls++
		return errors.New("UNIQUE constraint failed: invoices.invoice_number")
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, calls)
}
