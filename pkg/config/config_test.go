package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// t.Setenvはt.Parallelと併用できないため、このパッケージのテストは逐次実行する。

// TestGetEnvOr は環境変数の取得を検証する。
func TestGetEnvOr(t *testing.T) {
	t.Run("設定されていれば環境変数の値を返すこと", func(t *testing.T) {
		t.Setenv("REVIEW_TEST_VALUE", "configured")
		assert.Equal(t, "configured", GetEnvOr("REVIEW_TEST_VALUE", "default"))
	})

	t.Run("未設定ならデフォルト値を返すこと", func(t *testing.T) {
		t.Setenv("REVIEW_TEST_VALUE", "")
		assert.Equal(t, "default", GetEnvOr("REVIEW_TEST_VALUE", "default"))
	})
}

// TestGetIntOr は整数の環境変数の取得を検証する。
func TestGetIntOr(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "整数", value: "3600", want: 3600},
		{name: "未設定", value: "", want: 60},
		{name: "不正な値", value: "1h", want: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REVIEW_TEST_INT", tt.value)
			assert.Equal(t, tt.want, GetIntOr("REVIEW_TEST_INT", 60))
		})
	}
}

// TestGetBoolOr は真偽値の環境変数の取得を検証する。
func TestGetBoolOr(t *testing.T) {
	t.Setenv("REVIEW_TEST_BOOL", "false")
	assert.False(t, GetBoolOr("REVIEW_TEST_BOOL", true))

	t.Setenv("REVIEW_TEST_BOOL", "yes-please")
	assert.True(t, GetBoolOr("REVIEW_TEST_BOOL", true))
}

// TestGetListOr はカンマ区切りの環境変数の取得を検証する。
func TestGetListOr(t *testing.T) {
	t.Setenv("REVIEW_TEST_LIST", " http://a.example.com , ,http://b.example.com")
	assert.Equal(t, []string{"http://a.example.com", "http://b.example.com"}, GetListOr("REVIEW_TEST_LIST", nil))

	t.Setenv("REVIEW_TEST_LIST", "")
	assert.Equal(t, []string{"x"}, GetListOr("REVIEW_TEST_LIST", []string{"x"}))
}

// TestToken はトークン設定の組み立てを検証する。
func TestToken(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "k")
	t.Setenv("JWT_ISSUER", "")
	t.Setenv("JWT_DURATION", "120")

	cfg := Token()
	assert.Equal(t, "k", cfg.SecretKey)
	assert.Equal(t, "review-user-service", cfg.Issuer)
	assert.Equal(t, 120*time.Second, cfg.Duration)
	assert.NoError(t, cfg.Validate())
}

// TestCORS はCORS設定の組み立てを検証する。
func TestCORS(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://review.example.com")
	t.Setenv("CORS_ALLOWED_HEADERS", "")
	t.Setenv("CORS_ALLOWED_METHODS", "GET,POST")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")

	cfg := CORS()
	assert.Equal(t, []string{"https://review.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"Authorization", "Content-Type"}, cfg.AllowedHeaders)
	assert.Equal(t, []string{"GET", "POST"}, cfg.AllowedMethods)
	assert.False(t, cfg.AllowCredentials)
}

// TestLoad は.envファイルの読み込みを検証する。
func TestLoad(t *testing.T) {
	t.Run(".envの値が環境変数に設定されること", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("REVIEW_TEST_FROM_FILE=loaded\n"), 0o600))
		t.Setenv("REVIEW_TEST_FROM_FILE", "")
		require.NoError(t, os.Unsetenv("REVIEW_TEST_FROM_FILE"))

		require.NoError(t, Load(path))
		assert.Equal(t, "loaded", os.Getenv("REVIEW_TEST_FROM_FILE"))
	})

	t.Run("既存の環境変数は上書きしないこと", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("REVIEW_TEST_KEEP=from-file\n"), 0o600))
		t.Setenv("REVIEW_TEST_KEEP", "from-env")

		require.NoError(t, Load(path))
		assert.Equal(t, "from-env", os.Getenv("REVIEW_TEST_KEEP"))
	})

	t.Run("ファイルが無くてもエラーにならないこと", func(t *testing.T) {
		assert.NoError(t, Load(filepath.Join(t.TempDir(), "missing.env")))
	})
}
