package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション設定を表す
type Config struct {
	Env         string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Reservation ReservationConfig
	Auth        AuthConfig
	AMQP        AMQPConfig
	Metrics     MetricsConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
	// LockTimeout は行ロック待ちの上限（Postgres の lock_timeout）
	LockTimeout time.Duration
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host             string
	Port             string
	Password         string
	DB               int
	IdentityCacheTTL time.Duration
}

// ReservationConfig は座席予約の振る舞いに関する設定
type ReservationConfig struct {
	HoldWindow     time.Duration
	SweepInterval  time.Duration
	SweepLockTTL   time.Duration
	// SweepBatchSize は1回のスイープで解放する件数の上限
	SweepBatchSize int
}

// AuthConfig は呼び出し元の認証設定
// JWTSecret が空の場合は X-User-ID ヘッダーを信頼する（ローカル開発用）
type AuthConfig struct {
	JWTSecret string
}

// AMQPConfig は代理予約通知の送信先
type AMQPConfig struct {
	URL             string
	DelegationQueue string
}

// MetricsConfig は /metrics の Basic 認証設定
// User と Password の両方が設定されている場合のみ認証を要求する
type MetricsConfig struct {
	User     string
	Password string
}

// AuthEnabled は認証が有効かどうかを返す
func (c *MetricsConfig) AuthEnabled() bool {
	return c.User != "" && c.Password != ""
}

// LoadDotEnv は .env ファイルがあれば環境変数に読み込む
// 既に設定されている環境変数は上書きしない
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// Load は環境変数から設定を読み込む
func Load() *Config {
	return &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "seat_reservation"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
			LockTimeout:    getDurationEnv("STORE_LOCK_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Host:             getEnv("REDIS_HOST", "localhost"),
			Port:             getEnv("REDIS_PORT", "6379"),
			Password:         getEnv("REDIS_PASSWORD", ""),
			DB:               getIntEnv("REDIS_DB", 0),
			IdentityCacheTTL: getDurationEnv("IDENTITY_CACHE_TTL", 10*time.Minute),
		},
		Reservation: ReservationConfig{
			HoldWindow:     getDurationEnv("HOLD_WINDOW", 5*time.Minute),
			SweepInterval:  getDurationEnv("SWEEP_INTERVAL", 60*time.Second),
			SweepLockTTL:   getDurationEnv("SWEEP_LOCK_TTL", 30*time.Second),
			SweepBatchSize: getIntEnv("SWEEP_BATCH_SIZE", 500),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		AMQP: AMQPConfig{
			URL:             getEnv("AMQP_URL", ""),
			DelegationQueue: getEnv("AMQP_DELEGATION_QUEUE", "seat.delegated"),
		},
		Metrics: MetricsConfig{
			User:     getEnv("METRICS_USER", ""),
			Password: getEnv("METRICS_PASSWORD", ""),
		},
	}
}

// IsProduction は本番環境かを返す
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ErrJWTSecretRequired は本番環境で JWT_SECRET が未設定のときに返る
var ErrJWTSecretRequired = errors.New("本番環境では JWT_SECRET が必須です")

// Validate は起動できない設定の組み合わせを検出する
func (c *Config) Validate() error {
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return ErrJWTSecretRequired
	}
	return nil
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getDurationEnv は正の duration のみ受け付ける
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
