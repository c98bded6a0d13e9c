// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// メール送信プロバイダーの種別です。
const (
	MailProviderLog      = "log"
	MailProviderSendGrid = "sendgrid"
	MailProviderResend   = "resend"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// 認証設定
	JWTSecret  string        // セッショントークン署名用の秘密鍵
	SessionTTL time.Duration // セッションの有効期間
	BcryptCost int           // bcryptのコスト

	// データベース設定
	MongoURI      string        // MongoDB接続URI（空の場合はインメモリストア）
	MongoDatabase string        // データベース名
	MongoTimeout  time.Duration // MongoDBクライアントのタイムアウト

	// ジョブ/キュー設定
	QueueRedisURL    string // Asynq用Redis接続URL（空の場合はメールを同期送信）
	JobExpireMinutes int    // ジョブ記録の保持期間（分）

	// メール設定
	MailProvider string // log, sendgrid, resend
	MailAPIKey   string // プロバイダーのAPIキー
	MailFrom     string // 送信元アドレス
	ClientURL    string // メール本文のリンクに使うフロントエンドURL

	// ログ設定
	LogFormat string // json または text
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// 認証設定
		JWTSecret:  getEnv("JWT_SECRET", ""),
		SessionTTL: getEnvAsDuration("SESSION_TTL", 7*24*time.Hour),
		BcryptCost: getEnvAsInt("BCRYPT_COST", 10),

		// データベース設定
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "blog"),
		MongoTimeout:  getEnvAsDuration("MONGO_TIMEOUT", 10*time.Second),

		// ジョブ/キュー設定
		QueueRedisURL:    getEnv("QUEUE_REDIS_URL", ""),
		JobExpireMinutes: getEnvAsInt("JOB_EXPIRE_MINUTES", 60),

		// メール設定
		MailProvider: getEnv("MAIL_PROVIDER", MailProviderLog),
		MailAPIKey:   getEnv("MAIL_API_KEY", ""),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@localhost"),
		ClientURL:    getEnv("CLIENT_URL", "http://localhost:3000"),

		// ログ設定
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// IsRelease は release モードで動作しているかを返します。
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.MailProvider {
	case MailProviderLog, MailProviderSendGrid, MailProviderResend:
	default:
		return fmt.Errorf("unsupported MAIL_PROVIDER: %s", c.MailProvider)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	// ローカル開発では秘密鍵やDBは任意
	// 本番環境では厳格にチェックする
	if c.IsRelease() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in release mode")
		}
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required in release mode")
		}
		if c.MailProvider == MailProviderLog {
			return fmt.Errorf("MAIL_PROVIDER must be sendgrid or resend in release mode")
		}
		if c.MailAPIKey == "" {
			return fmt.Errorf("MAIL_API_KEY is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します（例: "168h"）。
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
