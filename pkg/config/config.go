// Package config は環境変数からサービスの設定を読み込む。
//
// 起動時にLoadで.envファイルを読み込み、その後は環境変数を参照する。
// 既に設定されている環境変数は.envの値で上書きしない。
package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nao1215/review/pkg/middleware"
	"github.com/nao1215/review/pkg/token"
)

// envFile はデフォルトで読み込む.envファイルのパス。
const envFile = ".env"

// Load は.envファイルを読み込んで環境変数に設定する。
// ファイルが存在しない場合は何もしない。
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{envFile}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Printf("[Config] %s が見つからないため環境変数のみを使用します", p)
				continue
			}
			return err
		}
	}
	return nil
}

// GetEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func GetEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetIntOr は環境変数を整数として取得する。
// 未設定または整数として解釈できない場合はデフォルト値を返す。
func GetIntOr(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[Config] %s の値 %q を整数として解釈できないためデフォルト値 %d を使用します", key, v, defaultValue)
		return defaultValue
	}
	return n
}

// GetBoolOr は環境変数を真偽値として取得する。
func GetBoolOr(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[Config] %s の値 %q を真偽値として解釈できないためデフォルト値 %t を使用します", key, v, defaultValue)
		return defaultValue
	}
	return b
}

// GetListOr はカンマ区切りの環境変数を文字列のスライスとして取得する。
// 空要素は取り除く。
func GetListOr(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

// Token はJWT_SECRET_KEY・JWT_ISSUER・JWT_DURATION（秒）からトークンの設定を組み立てる。
func Token() token.Config {
	return token.Config{
		SecretKey: os.Getenv("JWT_SECRET_KEY"),
		Issuer:    GetEnvOr("JWT_ISSUER", "review-user-service"),
		Duration:  time.Duration(GetIntOr("JWT_DURATION", 86400)) * time.Second,
	}
}

// CORS はCORS_で始まる環境変数からCORSの設定を組み立てる。
func CORS() middleware.CORSConfig {
	def := middleware.DefaultCORSConfig("http://localhost:5173")
	return middleware.CORSConfig{
		AllowedOrigins:   GetListOr("CORS_ALLOWED_ORIGINS", def.AllowedOrigins),
		AllowedHeaders:   GetListOr("CORS_ALLOWED_HEADERS", def.AllowedHeaders),
		AllowedMethods:   GetListOr("CORS_ALLOWED_METHODS", def.AllowedMethods),
		AllowCredentials: GetBoolOr("CORS_ALLOW_CREDENTIALS", def.AllowCredentials),
	}
}

// InternalSecret は内部サービス間の共有シークレットを返す。
// 未設定の場合は空文字列を返し、内部サービスとしての認証は常に失敗する。
func InternalSecret() string {
	return os.Getenv("INTERNAL_SERVICE_SECRET")
}
