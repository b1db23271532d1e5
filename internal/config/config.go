package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Warehouse drivers.
const (
	DriverStatementAPI = "databricks"
	DriverPostgres     = "postgres"
)

// Mail providers.
const (
	MailSMTP = "smtp"
	MailSES  = "ses"
	MailNone = "none"
)

// Config is the full job configuration.
type Config struct {
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Index     IndexConfig     `yaml:"index"`
	Output    OutputConfig    `yaml:"output"`
	Layout    LayoutConfig    `yaml:"layout"`
	Mail      MailConfig      `yaml:"mail"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Log       LogConfig       `yaml:"log"`

	DatabaseURL    string `yaml:"database_url"`
	PushgatewayURL string `yaml:"pushgateway_url"`
}

// WarehouseConfig selects and configures the remote query client.
type WarehouseConfig struct {
	Driver      string        `yaml:"driver"`
	Endpoint    string        `yaml:"endpoint"`
	Token       string        `yaml:"token"`
	WarehouseID string        `yaml:"warehouse_id"`
	DSN         string        `yaml:"dsn"`
	Statement   string        `yaml:"statement"`
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffUnit time.Duration `yaml:"backoff_unit"`
	Timeout     time.Duration `yaml:"timeout"`
}

// IndexConfig locates the account index workbook.
type IndexConfig struct {
	Path           string        `yaml:"path"`
	Sheet          string        `yaml:"sheet"`
	RefreshCommand string        `yaml:"refresh_command"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	SaveDelay      time.Duration `yaml:"save_delay"`
}

// OutputConfig controls where statements go.
type OutputConfig struct {
	Base            string `yaml:"base"`
	DeleteOriginals bool   `yaml:"delete_originals"`
}

// LayoutConfig holds the fixed statement texts.
type LayoutConfig struct {
	CompanyName     string `yaml:"company_name"`
	StateCode       string `yaml:"state_code"`
	FooterText      string `yaml:"footer_text"`
	OmbudsmanPhone  string `yaml:"ombudsman_phone"`
	BackgroundImage string `yaml:"background_image"`
}

// MailConfig configures the notification email.
type MailConfig struct {
	Provider  string `yaml:"provider"`
	Host      string `yaml:"smtp_host"`
	Port      int    `yaml:"smtp_port"`
	Username  string `yaml:"smtp_username"`
	Password  string `yaml:"smtp_password"`
	From      string `yaml:"from"`
	Subject   string `yaml:"subject"`
	Contact   string `yaml:"contact"`
	AWSRegion string `yaml:"aws_region"`
}

// ScheduleConfig defines the cron trigger.
type ScheduleConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration and validates it.
func Load() (Config, error) {
	cfg, err := Read()
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Read loads .env (ENV_FILE, default ".env", optional), the environment and the optional
// YAML overlay named by CONFIG_FILE without validating.
func Read() (Config, error) {
	envFile := getenvDefault("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	cfg := FromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// FromEnv builds a config from environment variables and defaults.
func FromEnv() Config {
	return Config{
		Warehouse: WarehouseConfig{
			Driver:      strings.ToLower(getenvDefault("WAREHOUSE_DRIVER", DriverStatementAPI)),
			Endpoint:    os.Getenv("WAREHOUSE_ENDPOINT"),
			Token:       os.Getenv("WAREHOUSE_TOKEN"),
			WarehouseID: os.Getenv("WAREHOUSE_ID"),
			DSN:         os.Getenv("WAREHOUSE_DSN"),
			Statement:   os.Getenv("WAREHOUSE_STATEMENT"),
			MaxAttempts: getenvIntDefault("WAREHOUSE_MAX_ATTEMPTS", 3),
			BackoffUnit: getenvDuration("WAREHOUSE_BACKOFF_UNIT", 10*time.Second),
			Timeout:     getenvDuration("WAREHOUSE_TIMEOUT", 60*time.Second),
		},
		Index: IndexConfig{
			Path:           os.Getenv("INDEX_PATH"),
			Sheet:          os.Getenv("INDEX_SHEET"),
			RefreshCommand: os.Getenv("INDEX_REFRESH_COMMAND"),
			SettleDelay:    getenvDuration("INDEX_SETTLE_DELAY", 0),
			SaveDelay:      getenvDuration("INDEX_SAVE_DELAY", 0),
		},
		Output: OutputConfig{
			Base:            getenvDefault("OUTPUT_BASE", "output"),
			DeleteOriginals: getenvBool("ARCHIVE_DELETE_ORIGINALS", false),
		},
		Layout: LayoutConfig{
			CompanyName:     getenvDefault("COMPANY_NAME", "SICREDI"),
			StateCode:       getenvDefault("STATE_CODE", "SC"),
			FooterText:      getenvDefault("FOOTER_TEXT", "Sicredi Vale Litoral - SC"),
			OmbudsmanPhone:  os.Getenv("OMBUDSMAN_PHONE"),
			BackgroundImage: os.Getenv("BACKGROUND_IMAGE"),
		},
		Mail: MailConfig{
			Provider:  strings.ToLower(getenvDefault("MAIL_PROVIDER", MailSMTP)),
			Host:      os.Getenv("SMTP_HOST"),
			Port:      getenvIntDefault("SMTP_PORT", 587),
			Username:  os.Getenv("SMTP_USERNAME"),
			Password:  os.Getenv("SMTP_PASSWORD"),
			From:      os.Getenv("EMAIL_FROM"),
			Subject:   os.Getenv("EMAIL_SUBJECT"),
			Contact:   os.Getenv("EMAIL_CONTACT"),
			AWSRegion: os.Getenv("AWS_REGION"),
		},
		Schedule: ScheduleConfig{
			Cron:     getenvDefault("SCHEDULE_CRON", "0 6 1 * *"),
			Timezone: getenvDefault("SCHEDULE_TZ", "America/Sao_Paulo"),
		},
		Log: LogConfig{
			Level:  getenvDefault("LOG_LEVEL", "info"),
			Format: getenvDefault("LOG_FORMAT", "console"),
		},
		DatabaseURL:    getenvDefault("DATABASE_URL", os.Getenv("PG_DSN")),
		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
	}
}

// Validate reports the first missing or inconsistent setting.
func (c Config) Validate() error {
	switch c.Warehouse.Driver {
	case DriverStatementAPI:
		if c.Warehouse.Endpoint == "" || c.Warehouse.Token == "" {
			return errors.New("config: WAREHOUSE_ENDPOINT and WAREHOUSE_TOKEN are required")
		}
	case DriverPostgres:
		if c.Warehouse.DSN == "" {
			return errors.New("config: WAREHOUSE_DSN is required")
		}
	default:
		return fmt.Errorf("config: unknown warehouse driver %q", c.Warehouse.Driver)
	}
	if c.Warehouse.Statement == "" {
		return errors.New("config: WAREHOUSE_STATEMENT is required")
	}
	if c.Index.Path == "" {
		return errors.New("config: INDEX_PATH is required")
	}
	if c.Output.Base == "" {
		return errors.New("config: OUTPUT_BASE is required")
	}
	switch c.Mail.Provider {
	case MailSMTP:
		if c.Mail.Host == "" {
			return errors.New("config: SMTP_HOST is required")
		}
	case MailSES, MailNone:
	default:
		return fmt.Errorf("config: unknown mail provider %q", c.Mail.Provider)
	}
	if c.Mail.Provider != MailNone && c.Mail.From == "" {
		return errors.New("config: EMAIL_FROM is required")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getenvDuration accepts Go durations ("10s") or a plain number of seconds.
func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
