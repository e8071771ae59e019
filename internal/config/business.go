package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BusinessConfig holds commercial defaults that operators tune without a
// redeploy.
type BusinessConfig struct {
	QuotationValidityDays int
	PaymentTermsDays      int
	DefaultTaxRate        string
	Currency              string
	// InvoiceTerms is printed on invoices that carry no terms of their own.
	InvoiceTerms string
	Company      CompanyInfo
}

type CompanyInfo struct {
	Name        string
	Address     string
	Email       string
	Phone       string
	BankDetails string
	LogoPath    string
}

func DefaultBusinessConfig() BusinessConfig {
	return BusinessConfig{
		QuotationValidityDays: 30,
		PaymentTermsDays:      30,
		DefaultTaxRate:        "16",
		Currency:              "KES",
		Company: CompanyInfo{
			Name: "Kay",
		},
	}
}

// TaxRate returns the default tax rate in percent.
func (c BusinessConfig) TaxRate() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.DefaultTaxRate))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

type BusinessConfigHolder struct {
	current atomic.Value // holds BusinessConfig
}

// NewStaticBusinessConfigHolder wraps a fixed configuration.
func NewStaticBusinessConfigHolder(cfg BusinessConfig) *BusinessConfigHolder {
	holder := &BusinessConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBusinessConfigHolder(log *zap.Logger) (*BusinessConfigHolder, error) {
	log = log.Named("config.business")
	v := viper.New()

	v.SetConfigName("business")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/kay/config") // Volume-mounted config
	v.AddConfigPath("/etc/kay")            // System config
	v.AddConfigPath(".")                   // Current directory (dev mode)

	v.SetEnvPrefix("KAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBusinessConfig()
	v.SetDefault("business.quotationValidityDays", defaults.QuotationValidityDays)
	v.SetDefault("business.paymentTermsDays", defaults.PaymentTermsDays)
	v.SetDefault("business.defaultTaxRate", defaults.DefaultTaxRate)
	v.SetDefault("business.currency", defaults.Currency)
	v.SetDefault("business.company.name", defaults.Company.Name)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	var cfg BusinessConfig
	if err := v.UnmarshalKey("business", &cfg); err != nil {
		return nil, err
	}
	if err := validateBusinessConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBusinessConfigHolder(cfg)

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated BusinessConfig
			if err := v.UnmarshalKey("business", &updated); err != nil {
				log.Warn("business config reload failed", zap.Error(err))
				return
			}
			if err := validateBusinessConfig(updated); err != nil {
				log.Warn("invalid business config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("business config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *BusinessConfigHolder) Get() BusinessConfig {
	return h.current.Load().(BusinessConfig)
}

func validateBusinessConfig(cfg BusinessConfig) error {
	if cfg.QuotationValidityDays <= 0 {
		return errors.New("business.quotationValidityDays must be positive")
	}
	if cfg.PaymentTermsDays < 0 {
		return errors.New("business.paymentTermsDays cannot be negative")
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(cfg.DefaultTaxRate))
	if err != nil {
		return errors.New("business.defaultTaxRate must be a number")
	}
	if rate.IsNegative() {
		return errors.New("business.defaultTaxRate cannot be negative")
	}
	return nil
}
