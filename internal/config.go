package internal

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Source          string        `mapstructure:"source"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// GatewayConfig is the merchant-side configuration surface for the bank
// payment gateway. The four keys are PEM-encoded strings.
type GatewayConfig struct {
	BaseURL    string `mapstructure:"base_url" validate:"required,url"`
	MerchantID string `mapstructure:"merchant_id" validate:"required"`
	APIKey     string `mapstructure:"api_key" validate:"required"`

	SigningPrivateKey       string `mapstructure:"signing_private_key" validate:"required"`
	DecryptionPrivateKey    string `mapstructure:"decryption_private_key" validate:"required"`
	BankSigningPublicKey    string `mapstructure:"bank_signing_public_key" validate:"required"`
	BankEncryptionPublicKey string `mapstructure:"bank_encryption_public_key" validate:"required"`

	CurrencyCode   string  `mapstructure:"currency_code" validate:"required,len=3"`
	CardFeeEnabled bool    `mapstructure:"card_fee_enabled"`
	CardFeePercent float64 `mapstructure:"card_fee_percent"`
	ThreeDSecure   bool    `mapstructure:"three_d_secure"`
	TestMode       bool    `mapstructure:"test_mode"`

	SubmitTimeout time.Duration `mapstructure:"submit_timeout"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds the configuration from environment variables for
// container deployments.
func LoadConfigFromEnv() *Config {
	feePct, _ := strconv.ParseFloat(getEnv("GATEWAY_CARD_FEE_PERCENT", "0"), 64)

	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "pgx"),
			Source:          getEnv("DB_SOURCE", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled: getEnvAsBool("REDIS_ENABLED", false),
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Gateway: GatewayConfig{
			BaseURL:                 getEnv("GATEWAY_BASE_URL", ""),
			MerchantID:              getEnv("GATEWAY_MERCHANT_ID", ""),
			APIKey:                  getEnv("GATEWAY_API_KEY", ""),
			SigningPrivateKey:       getEnv("GATEWAY_SIGNING_PRIVATE_KEY", ""),
			DecryptionPrivateKey:    getEnv("GATEWAY_DECRYPTION_PRIVATE_KEY", ""),
			BankSigningPublicKey:    getEnv("GATEWAY_BANK_SIGNING_PUBLIC_KEY", ""),
			BankEncryptionPublicKey: getEnv("GATEWAY_BANK_ENCRYPTION_PUBLIC_KEY", ""),
			CurrencyCode:            getEnv("GATEWAY_CURRENCY_CODE", "MVR"),
			CardFeeEnabled:          getEnvAsBool("GATEWAY_CARD_FEE_ENABLED", false),
			CardFeePercent:          feePct,
			ThreeDSecure:            getEnvAsBool("GATEWAY_THREE_D_SECURE", true),
			TestMode:                getEnvAsBool("GATEWAY_TEST_MODE", false),
			SubmitTimeout:           30 * time.Second,
			SessionTTL:              15 * time.Minute,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Driver != "pgx" && c.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *GatewayConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if c.MerchantID == "" {
		return errors.New("merchant_id is required")
	}
	if c.APIKey == "" {
		return errors.New("api_key is required")
	}
	if len(c.CurrencyCode) != 3 {
		return errors.New("currency_code must be a 3-letter ISO code")
	}
	if c.CardFeePercent < 0 || c.CardFeePercent > 100 {
		return errors.New("card_fee_percent must be between 0 and 100")
	}
	if _, err := c.GetSigningKey(); err != nil {
		return fmt.Errorf("invalid signing private key: %w", err)
	}
	if _, err := c.GetDecryptionKey(); err != nil {
		return fmt.Errorf("invalid decryption private key: %w", err)
	}
	if _, err := c.GetBankVerificationKey(); err != nil {
		return fmt.Errorf("invalid bank signing public key: %w", err)
	}
	if _, err := c.GetBankEncryptionKey(); err != nil {
		return fmt.Errorf("invalid bank encryption public key: %w", err)
	}
	return nil
}

// GetSubmitTimeout returns the gateway call timeout, bounded to a
// conservative default when unset.
func (c *GatewayConfig) GetSubmitTimeout() time.Duration {
	if c.SubmitTimeout <= 0 {
		return 30 * time.Second
	}
	return c.SubmitTimeout
}

func (c *GatewayConfig) GetSessionTTL() time.Duration {
	if c.SessionTTL <= 0 {
		return 15 * time.Minute
	}
	return c.SessionTTL
}

// ----------------- KEY MATERIAL -----------------

func (c *GatewayConfig) GetSigningKey() (*rsa.PrivateKey, error) {
	return ParseRSAPrivateKeyPEM(c.SigningPrivateKey)
}

func (c *GatewayConfig) GetDecryptionKey() (*rsa.PrivateKey, error) {
	return ParseRSAPrivateKeyPEM(c.DecryptionPrivateKey)
}

func (c *GatewayConfig) GetBankVerificationKey() (*rsa.PublicKey, error) {
	return ParseRSAPublicKeyPEM(c.BankSigningPublicKey)
}

func (c *GatewayConfig) GetBankEncryptionKey() (*rsa.PublicKey, error) {
	return ParseRSAPublicKeyPEM(c.BankEncryptionPublicKey)
}

// ParseRSAPrivateKeyPEM parses a PEM-encoded RSA private key in either
// PKCS#1 or PKCS#8 form. Failures are KEY_CONFIGURATION_ERROR.
func ParseRSAPrivateKeyPEM(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, NewKeyConfigurationError("failed to parse PEM block for private key", nil)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, NewKeyConfigurationError("failed to parse private key", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, NewKeyConfigurationError("private key is not an RSA key", nil)
	}
	return key, nil
}

// ParseRSAPublicKeyPEM parses a PEM-encoded RSA public key in either
// PKIX or PKCS#1 form. Failures are KEY_CONFIGURATION_ERROR.
func ParseRSAPublicKeyPEM(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, NewKeyConfigurationError("failed to parse PEM block for public key", nil)
	}

	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if pub, ok := parsed.(*rsa.PublicKey); ok {
			return pub, nil
		}
		return nil, NewKeyConfigurationError("public key is not an RSA key", nil)
	}

	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, NewKeyConfigurationError("failed to parse public key", err)
	}
	return pub, nil
}
