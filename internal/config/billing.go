package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig is the schedule and policy for recurring billing runs.
// It is read from billing.yml and handed to the orchestrator per run.
type BillingConfig struct {
	Timezone string `mapstructure:"timezone"`

	// Day, Hour and Minute place the monthly run. Day 0 means "first days
	// of the month" for monthly employees.
	Day    int `mapstructure:"day"`
	Hour   int `mapstructure:"hour"`
	Minute int `mapstructure:"minute"`

	BatchSize          int           `mapstructure:"batchSize"`
	TestMode           bool          `mapstructure:"testMode"`
	TestInterval       time.Duration `mapstructure:"testInterval"`
	VATRate            float64       `mapstructure:"vatRate"`
	VATMode            string        `mapstructure:"vatMode"`
	ExpirationDays     int           `mapstructure:"expirationDays"`
	RunLockTTL         time.Duration `mapstructure:"runLockTTL"`
	DefaultWorkedHours float64       `mapstructure:"defaultWorkedHours"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Timezone:           "Europe/Madrid",
		Day:                1,
		Hour:               6,
		Minute:             0,
		BatchSize:          500,
		TestMode:           false,
		TestInterval:       5 * time.Minute,
		VATRate:            0,
		VATMode:            "exclusive",
		ExpirationDays:     10,
		RunLockTTL:         30 * time.Minute,
		DefaultWorkedHours: 160,
	}
}

// Location resolves the configured time zone, falling back to UTC.
func (c BillingConfig) Location() *time.Location {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder wraps a fixed config, mostly for tests and CLI overrides.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewBillingConfigHolder reads billing.yml and, when the file exists,
// swaps in valid edits without a restart. Invalid edits are logged and ignored.
func NewBillingConfigHolder(appCfg Config, log *zap.Logger) (*BillingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.billing")
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	if path := strings.TrimSpace(appCfg.BillingConfigPath); path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("/etc/escolar")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ESCOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.timezone", defaults.Timezone)
	v.SetDefault("billing.day", defaults.Day)
	v.SetDefault("billing.hour", defaults.Hour)
	v.SetDefault("billing.minute", defaults.Minute)
	v.SetDefault("billing.batchSize", defaults.BatchSize)
	v.SetDefault("billing.testMode", defaults.TestMode)
	v.SetDefault("billing.testInterval", defaults.TestInterval)
	v.SetDefault("billing.vatRate", defaults.VATRate)
	v.SetDefault("billing.vatMode", defaults.VATMode)
	v.SetDefault("billing.expirationDays", defaults.ExpirationDays)
	v.SetDefault("billing.runLockTTL", defaults.RunLockTTL)
	v.SetDefault("billing.defaultWorkedHours", defaults.DefaultWorkedHours)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := ValidateBillingConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func ValidateBillingConfig(cfg BillingConfig) error {
	if cfg.Day < 0 || cfg.Day > 31 {
		return errors.New("billing.day must be between 0 and 31")
	}
	if cfg.Hour < 0 || cfg.Hour > 23 {
		return errors.New("billing.hour must be between 0 and 23")
	}
	if cfg.Minute < 0 || cfg.Minute > 59 {
		return errors.New("billing.minute must be between 0 and 59")
	}
	if cfg.BatchSize < 0 {
		return errors.New("billing.batchSize cannot be negative")
	}
	if cfg.VATRate < 0 {
		return errors.New("billing.vatRate cannot be negative")
	}
	switch cfg.VATMode {
	case "", "exclusive", "inclusive":
	default:
		return errors.New("billing.vatMode must be exclusive or inclusive")
	}
	if cfg.TestMode && cfg.TestInterval <= 0 {
		return errors.New("billing.testInterval must be positive in test mode")
	}
	if _, err := time.LoadLocation(strings.TrimSpace(cfg.Timezone)); err != nil {
		return err
	}
	return nil
}
