// Package config はアプリケーション設定とフィードグループ定義の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Fetch
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int
	RateLimitPerHost   float64

	// Parse
	ParseWorkers int // 0 の場合はGOMAXPROCSを使用

	// Paths
	CacheDBPath string
	OutputDir   string
	LogDir      string
	ConfigPath  string
	SourcePath  string

	// Ops
	OpsAddr string // 空の場合はopsサーバーを起動しない
}

// Load は環境変数からConfigを読み込む。
// すべてのフィールドにデフォルト値があるため、エラーは返さない。
func Load() *Config {
	return &Config{
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		FetchMaxSize:       getEnvInt64("FETCH_MAX_SIZE", 5242880),
		FetchMaxConcurrent: getEnvInt("FETCH_MAX_CONCURRENT", 16),
		RateLimitPerHost:   getEnvFloat("RATE_LIMIT_PER_HOST", 4),
		ParseWorkers:       getEnvInt("PARSE_WORKERS", 0),
		CacheDBPath:        getEnvString("CACHE_DB_PATH", "cache/cache.db"),
		OutputDir:          getEnvString("OUTPUT_DIR", "rss_feeds"),
		LogDir:             getEnvString("LOG_DIR", "logs"),
		ConfigPath:         getEnvString("CONFIG_PATH", "yaml_config/rss_config.yaml"),
		SourcePath:         getEnvString("SOURCE_PATH", "config_source/feeds.json"),
		OpsAddr:            getEnvString("OPS_ADDR", ""),
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
