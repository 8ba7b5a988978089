package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Chatbot   ChatbotConfig   `mapstructure:"chatbot"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Environment  string `mapstructure:"environment"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnectRetries  int    `mapstructure:"connect_retries"`
}

type ChatbotConfig struct {
	Token       string `mapstructure:"token"`
	PollTimeout int    `mapstructure:"poll_timeout"`
	Debug       bool   `mapstructure:"debug"`
}

// LedgerConfig carries the financial defaults applied when a user record is
// constructed, plus the business-rule knobs of the attendance ledger.
type LedgerConfig struct {
	DefaultDailyPrice   int64 `mapstructure:"default_daily_price"`
	DefaultBalance      int64 `mapstructure:"default_balance"`
	CancelCutoffHour    int   `mapstructure:"cancel_cutoff_hour"`
	LowBalanceThreshold int64 `mapstructure:"low_balance_threshold"`
}

type SchedulerConfig struct {
	Timezone        string `mapstructure:"timezone"`
	MorningPrompt   string `mapstructure:"morning_prompt"`
	DailySummary    string `mapstructure:"daily_summary"`
	DebtCheck       string `mapstructure:"debt_check"`
	LowBalanceCheck string `mapstructure:"low_balance_check"`
	NightlyCleanup  string `mapstructure:"nightly_cleanup"`
	SheetSync       string `mapstructure:"sheet_sync"`
	Enabled         bool   `mapstructure:"enabled"`
}

type SheetsConfig struct {
	ExportURL  string `mapstructure:"export_url"`
	Timeout    int    `mapstructure:"timeout"`
	MaxRetries int    `mapstructure:"max_retries"`
	Enabled    bool   `mapstructure:"enabled"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "lunchbot")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)
	viper.SetDefault("database.connect_retries", 5)

	viper.SetDefault("chatbot.token", "")
	viper.SetDefault("chatbot.poll_timeout", 30)
	viper.SetDefault("chatbot.debug", false)

	viper.SetDefault("ledger.default_daily_price", 25000)
	viper.SetDefault("ledger.default_balance", 0)
	viper.SetDefault("ledger.cancel_cutoff_hour", 10)
	viper.SetDefault("ledger.low_balance_threshold", 50000)

	// Cron expressions are evaluated in scheduler.timezone; weekday
	// filtering is the job's own responsibility, not the trigger's.
	viper.SetDefault("scheduler.timezone", "Asia/Tashkent")
	viper.SetDefault("scheduler.morning_prompt", "0 7 * * *")
	viper.SetDefault("scheduler.daily_summary", "0 10 * * *")
	viper.SetDefault("scheduler.debt_check", "0 12 * * *")
	viper.SetDefault("scheduler.low_balance_check", "0 12 * * *")
	viper.SetDefault("scheduler.nightly_cleanup", "0 0 * * *")
	viper.SetDefault("scheduler.sheet_sync", "0 * * * *")
	viper.SetDefault("scheduler.enabled", true)

	viper.SetDefault("sheets.export_url", "")
	viper.SetDefault("sheets.timeout", 30)
	viper.SetDefault("sheets.max_retries", 3)
	viper.SetDefault("sheets.enabled", false)
}
