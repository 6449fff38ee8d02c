package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvLocal      = "local"
	EnvProduction = "production"

	// devJWTSecret is only accepted outside production.
	devJWTSecret = "dev-secret-change-me"
)

var (
	localCORSOrigins = []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
		"http://localhost:8080",
		"http://127.0.0.1:8080",
		"http://localhost:5173",
		"http://127.0.0.1:5173",
		"file://",
		"null",
		"chrome-extension://*",
		"moz-extension://*",
	}
	productionCORSOrigins = []string{
		"https://*.run.app",
		"file://",
		"null",
		"chrome-extension://*",
	}
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
	Database    DatabaseConfig `mapstructure:"database"`
	LLM         LLMConfig      `mapstructure:"llm"`
	Categories  CategoryConfig `mapstructure:"categories"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	GoogleClientID string        `mapstructure:"google_client_id"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
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

// LLMConfig points at an OpenAI compatible chat completion API.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTags     int           `mapstructure:"max_tags"`
}

// CategoryConfig locates the flat file used when no database is reachable.
type CategoryConfig struct {
	File string `mapstructure:"file"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// UsingDevSecret reports whether the built-in development secret is in use.
func (c *Config) UsingDevSecret() bool {
	return c.Auth.JWTSecret == devJWTSecret
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Hostname() == "" {
		return DatabaseConfig{}, errors.New("missing host")
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
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

// LoadConfig reads the optional YAML file at path, then applies environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("environment", EnvLocal)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.google_client_id", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "kgnote")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.deepseek.com")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_tags", 4)
	v.SetDefault("categories.file", "data/categories.json")

	// Nested keys map to KGNOTE_SECTION_KEY, e.g. KGNOTE_SERVER_PORT. viper
	// only resolves env for keys it knows, so every key needs a default above.
	v.SetEnvPrefix("kgnote")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(v, &config); err != nil {
		return nil, err
	}

	if config.Environment != EnvLocal && config.Environment != EnvProduction {
		return nil, fmt.Errorf("unknown environment %q", config.Environment)
	}
	if len(config.Server.CORSOrigins) == 0 {
		config.Server.CORSOrigins = localCORSOrigins
		if config.IsProduction() {
			config.Server.CORSOrigins = productionCORSOrigins
		}
	}
	if config.Auth.JWTSecret == "" {
		if config.IsProduction() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		config.Auth.JWTSecret = devJWTSecret
	}

	return &config, nil
}

// applyEnvOverrides applies the deployment variables, which win over the
// file and the prefixed variables.
func applyEnvOverrides(v *viper.Viper, config *Config) error {
	for _, key := range []string{
		"ENVIRONMENT", "PORT", "DATABASE_URL", "TELEGRAM_TOKEN", "DEEPSEEK_API_KEY",
		"JWT_SECRET", "GOOGLE_CLIENT_ID", "CATEGORIES_FILE",
	} {
		if err := v.BindEnv("env." + strings.ToLower(key), key); err != nil {
			return err
		}
	}

	if env := v.GetString("env.environment"); env != "" {
		config.Environment = strings.ToLower(env)
	}
	if port := v.GetInt("env.port"); port != 0 {
		config.Server.Port = port
	}
	if dbURL := v.GetString("env.database_url"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		dbConfig.UseInMemory = config.Database.UseInMemory
		config.Database = dbConfig
	}
	if token := v.GetString("env.telegram_token"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("env.deepseek_api_key"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if secret := v.GetString("env.jwt_secret"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if clientID := v.GetString("env.google_client_id"); clientID != "" {
		config.Auth.GoogleClientID = clientID
	}
	if file := v.GetString("env.categories_file"); file != "" {
		config.Categories.File = file
	}
	return nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}
