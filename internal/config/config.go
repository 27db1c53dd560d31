package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	defaultEnv           = "dev"
	defaultDBPath        = "./dev.db"
	defaultPort          = "8080"
	defaultMigrationsDir = "migrations"
)

var (
	defaultTaxRate         = decimal.RequireFromString("0.0825")
	defaultTippingDiscount = decimal.RequireFromString("0.85")
	defaultCustomerMarkup  = decimal.NewFromInt(1)
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env           string
	DBPath        string
	Port          string
	MigrationsDir string

	// TaxRate applies to taxable disposal charges.
	TaxRate decimal.Decimal
	// TippingDiscount scales the disposal rate into the hauler's tipping rate.
	TippingDiscount decimal.Decimal
	// CustomerMarkup scales catalog rates before they are billed to customers.
	CustomerMarkup decimal.Decimal
}

// IsDev reports whether the service runs in local development mode.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}

// Load reads environment variables and returns a populated Config.
func Load() (Config, error) {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Env:           getenv("APP_ENV", defaultEnv),
		DBPath:        getenv("DB_PATH", defaultDBPath),
		Port:          getenv("PORT", defaultPort),
		MigrationsDir: getenv("MIGRATIONS_DIR", defaultMigrationsDir),
	}

	var err error
	if cfg.TaxRate, err = decimalEnv("TAX_RATE", defaultTaxRate); err != nil {
		return Config{}, err
	}
	if cfg.TippingDiscount, err = decimalEnv("TIPPING_DISCOUNT", defaultTippingDiscount); err != nil {
		return Config{}, err
	}
	if cfg.CustomerMarkup, err = decimalEnv("CUSTOMER_MARKUP", defaultCustomerMarkup); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs from a dotenv file without overwriting existing variables.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load dotenv %s: %w", path, err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func decimalEnv(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be numeric: %w", key, err)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", key)
	}
	return v, nil
}
