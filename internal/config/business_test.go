package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDefaultBusinessConfigIsValid(t *testing.T) {
	cfg := DefaultBusinessConfig()
	assert.NoError(t, validateBusinessConfig(cfg))
	assert.True(t, cfg.TaxRate().Equal(decimal.NewFromInt(16)))
	assert.Equal(t, 30, cfg.QuotationValidityDays)
}

func TestValidateBusinessConfigRejectsBadValues(t *testing.T) {
	cfg := DefaultBusinessConfig()
	cfg.QuotationValidityDays = 0
	assert.Error(t, validateBusinessConfig(cfg))

	cfg = DefaultBusinessConfig()
	cfg.DefaultTaxRate = "sixteen"
	assert.Error(t, validateBusinessConfig(cfg))

	cfg = DefaultBusinessConfig()
	cfg.DefaultTaxRate = "-1"
	assert.Error(t, validateBusinessConfig(cfg))
}

func TestStaticHolderReturnsStoredConfig(t *testing.T) {
	cfg := DefaultBusinessConfig()
	cfg.Currency = "USD"
	holder := NewStaticBusinessConfigHolder(cfg)
	assert.Equal(t, "USD", holder.Get().Currency)
}
