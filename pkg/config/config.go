package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xaenox/botpanel/internal/storage"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

// Postgres returns the connection settings understood by the record store.
func (c DatabaseConfig) Postgres() storage.DatabaseConfig {
	return storage.DatabaseConfig{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		DBName:   c.DBName,
		SSLMode:  c.SSLMode,
	}
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type PollerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// OperatorBinding maps a Telegram user onto the panel owner it acts as.
type OperatorBinding struct {
	TelegramID int64  `mapstructure:"telegram_id"`
	Owner      string `mapstructure:"owner"`
}

type TelegramConfig struct {
	Token     string            `mapstructure:"token"`
	Operators []OperatorBinding `mapstructure:"operators"`
}

// OperatorMap indexes the bindings by Telegram user id.
func (c TelegramConfig) OperatorMap() map[int64]string {
	out := make(map[int64]string, len(c.Operators))
	for _, op := range c.Operators {
		if op.TelegramID != 0 && op.Owner != "" {
			out[op.TelegramID] = op.Owner
		}
	}
	return out
}

type SecretsConfig struct {
	// AgeIdentity is an AGE-SECRET-KEY-1... string.
	AgeIdentity string `mapstructure:"age_identity"`
}

type AgentConfig struct {
	BotID    string        `mapstructure:"bot_id"`
	Owner    string        `mapstructure:"owner"`
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432
	if u.Port() != "" {
		if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q", u.Port())
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads the YAML file at path, if any, and applies environment
// overrides on top of it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "botpanel")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("poller.interval", "5s")
	v.SetDefault("agent.interval", "5s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.jwt_secret", "PANEL_JWT_SECRET")
	_ = v.BindEnv("secrets.age_identity", "PANEL_AGE_IDENTITY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		dbConfig.UseInMemory = config.Database.UseInMemory
		config.Database = dbConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if config.Poller.Interval <= 0 {
		return nil, fmt.Errorf("poller.interval must be positive, got %s", config.Poller.Interval)
	}
	if config.Agent.Interval <= 0 {
		return nil, fmt.Errorf("agent.interval must be positive, got %s", config.Agent.Interval)
	}

	return &config, nil
}
