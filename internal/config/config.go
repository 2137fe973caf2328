package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	WebSocket   WebSocketConfig `mapstructure:"websocket"`
	Email       EmailConfig
	CORS        CORSConfig      `mapstructure:"cors"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Progression ProgressionConfig
	Cache       CacheConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int `mapstructure:"read_timeout"`  // секунды
	WriteTimeout int `mapstructure:"write_timeout"` // секунды
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: список адресов Redis (хост:порт). Используется для всех режимов.
	Addrs []string `mapstructure:"addrs"`

	// Addr: адрес для режима 'single', если Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: имя мастер-сервера (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // миллисекунды
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // миллисекунды

	// KeyPrefix добавляется ко всем ключам приложения
	KeyPrefix string `mapstructure:"key_prefix"`
}

// JWTConfig содержит настройки JWT
type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	Issuer            string `mapstructure:"issuer"`
	ExpirationHrs     int    `mapstructure:"expirationHrs"`
	WSTicketExpirySec int    `mapstructure:"wsTicketExpirySec"` // время жизни тикета для WebSocket
}

// WebSocketConfig содержит настройки WebSocket-подсистемы
type WebSocketConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SendBuffer     int      `mapstructure:"send_buffer"`
	MaxMessageSize int      `mapstructure:"max_message_size"`
	// PubSub включает ретрансляцию событий между инстансами через Redis
	PubSubEnabled bool   `mapstructure:"pubsub_enabled"`
	PubSubChannel string `mapstructure:"pubsub_channel"`
}

// EmailConfig содержит настройки отправки писем через Resend
type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// CORSConfig содержит список разрешенных источников
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig содержит лимиты запросов
type RateLimitConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	AuthRequests    int  `mapstructure:"auth_requests"`
	AuthWindowSec   int  `mapstructure:"auth_window_sec"`
	SubmitRequests  int  `mapstructure:"submit_requests"`
	SubmitWindowSec int  `mapstructure:"submit_window_sec"`
}

// ProgressionConfig содержит правила прохождения челленджей
type ProgressionConfig struct {
	RequireLocationProximity bool    `mapstructure:"require_location_proximity"`
	DefaultRadiusMeters      float64 `mapstructure:"default_radius_meters"`
	XPPerLevel               int     `mapstructure:"xp_per_level"`
	MatchQRContent           bool    `mapstructure:"match_qr_content"`
}

// CacheConfig содержит время жизни кешей
type CacheConfig struct {
	LevelsTTLSec int `mapstructure:"levels_ttl_sec"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// TokenTTL возвращает время жизни access-токена
func (j *JWTConfig) TokenTTL() time.Duration {
	return time.Duration(j.ExpirationHrs) * time.Hour
}

// WSTicketTTL возвращает время жизни тикета WebSocket
func (j *JWTConfig) WSTicketTTL() time.Duration {
	return time.Duration(j.WSTicketExpirySec) * time.Second
}

// LevelsTTL возвращает время жизни кеша уровней
func (c *CacheConfig) LevelsTTL() time.Duration {
	return time.Duration(c.LevelsTTLSec) * time.Second
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")
	vip.SetDefault("redis.key_prefix", "cq:")
	vip.SetDefault("jwt.issuer", "challengequest")
	vip.SetDefault("jwt.expirationHrs", 24)
	vip.SetDefault("jwt.wsTicketExpirySec", 60)
	vip.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	vip.SetDefault("websocket.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	vip.SetDefault("websocket.send_buffer", 64)
	vip.SetDefault("websocket.max_message_size", 512)
	vip.SetDefault("websocket.pubsub_channel", "challengequest:events")
	vip.SetDefault("email.from", "ChallengeQuest <noreply@challengequest.app>")
	vip.SetDefault("rate_limit.enabled", true)
	vip.SetDefault("rate_limit.auth_requests", 10)
	vip.SetDefault("rate_limit.auth_window_sec", 60)
	vip.SetDefault("rate_limit.submit_requests", 30)
	vip.SetDefault("rate_limit.submit_window_sec", 60)
	vip.SetDefault("progression.require_location_proximity", false)
	vip.SetDefault("progression.default_radius_meters", 100.0)
	vip.SetDefault("progression.xp_per_level", 1000)
	vip.SetDefault("progression.match_qr_content", false)
	vip.SetDefault("cache.levels_ttl_sec", 300)
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // новый экземпляр, без глобального состояния

	// 1. Значения по умолчанию
	setDefaults(vip)

	// 2. Переменные окружения привязываются явно
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")
	vip.BindEnv("redis.key_prefix", "REDIS_KEY_PREFIX")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")
	vip.BindEnv("jwt.wsTicketExpirySec", "JWT_WSTICKETEXPIRYSEC")

	vip.BindEnv("server.port", "SERVER_PORT")

	vip.BindEnv("websocket.pubsub_enabled", "WEBSOCKET_PUBSUB_ENABLED")

	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	vip.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")

	vip.BindEnv("progression.require_location_proximity", "PROGRESSION_REQUIRE_LOCATION_PROXIMITY")
	vip.BindEnv("progression.default_radius_meters", "PROGRESSION_DEFAULT_RADIUS_METERS")
	vip.BindEnv("progression.xp_per_level", "PROGRESSION_XP_PER_LEVEL")
	vip.BindEnv("progression.match_qr_content", "PROGRESSION_MATCH_QR_CONTENT")

	// 3. Файл конфигурации (не обязателен, есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// 4. Viper объединяет значения из файла, окружения и умолчаний
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Логирование конфигурации (только вне release)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Port: %s", cfg.Database.Port)
		log.Printf("Database User: %s", cfg.Database.User)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s (mode %s)", cfg.Redis.Addr, cfg.Redis.Mode)
		log.Printf("JWT Secret Set: %t, Expiration Hours: %d", cfg.JWT.Secret != "", cfg.JWT.ExpirationHrs)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("WebSocket PubSub Enabled: %t", cfg.WebSocket.PubSubEnabled)
		log.Printf("Email Enabled: %t", cfg.Email.Enabled)
		log.Printf("Progression: proximity=%t radius=%.0fm xpPerLevel=%d matchQR=%t",
			cfg.Progression.RequireLocationProximity, cfg.Progression.DefaultRadiusMeters,
			cfg.Progression.XPPerLevel, cfg.Progression.MatchQRContent)
		log.Printf("-----------------------------------------")
	}

	// 6. Проверка обязательных параметров
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if os.Getenv("GIN_MODE") == "release" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("database password is required in release mode (check DATABASE_PASSWORD env var)")
	}

	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if len(c.JWT.Secret) < 16 {
		return fmt.Errorf("JWT secret must be at least 16 characters")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.Progression.XPPerLevel <= 0 {
		return fmt.Errorf("progression.xp_per_level must be positive")
	}
	if c.Email.Enabled && c.Email.ResendAPIKey == "" {
		return fmt.Errorf("email is enabled but RESEND_API_KEY is not set")
	}
	return nil
}
