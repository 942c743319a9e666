package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// newCORSRouter はCORSミドルウェアを適用したルーターを生成する。
// ハンドラが呼ばれた場合はcalledをtrueにする。
func newCORSRouter(cfg CORSConfig, called *bool) *gin.Engine {
	router := gin.New()
	router.Use(CORS(cfg))
	handler := func(c *gin.Context) {
		*called = true
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/user-service/api/user/me", handler)
	router.OPTIONS("/user-service/api/user/me", handler)
	return router
}

// TestCORS はCORSミドルウェアを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	frontend := DefaultCORSConfig("http://localhost:5173", "https://review.example.com")

	t.Run("許可されたオリジンにはオリジンをそのまま返すこと", func(t *testing.T) {
		t.Parallel()

		for _, origin := range frontend.AllowedOrigins {
			var called bool
			router := newCORSRouter(frontend, &called)

			req := httptest.NewRequest(http.MethodGet, "/user-service/api/user/me", nil)
			req.Header.Set("Origin", origin)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("%s: ステータスコード = %d, want %d", origin, w.Code, http.StatusOK)
			}
			if !called {
				t.Errorf("%s: ハンドラーが呼ばれるべき", origin)
			}
			want := map[string]string{
				"Access-Control-Allow-Origin":      origin,
				"Access-Control-Allow-Methods":     "GET, POST, PUT, DELETE, OPTIONS",
				"Access-Control-Allow-Headers":     "Authorization, Content-Type",
				"Access-Control-Allow-Credentials": "true",
				"Access-Control-Max-Age":           "86400",
				"Vary":                             "Origin",
			}
			for k, v := range want {
				if got := w.Header().Get(k); got != v {
					t.Errorf("%s: %s = %q, want %q", origin, k, got, v)
				}
			}
		}
	})

	t.Run("許可されていないオリジンやOriginが無い場合はCORSヘッダーを付けないこと", func(t *testing.T) {
		t.Parallel()

		for _, origin := range []string{"https://evil.example.com", ""} {
			var called bool
			router := newCORSRouter(frontend, &called)

			req := httptest.NewRequest(http.MethodGet, "/user-service/api/user/me", nil)
			if origin != "" {
				req.Header.Set("Origin", origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Origin=%q: ステータスコード = %d, want %d", origin, w.Code, http.StatusOK)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
				t.Errorf("Origin=%q: Access-Control-Allow-Origin = %q, want empty string", origin, got)
			}
		}
	})

	t.Run("プリフライトは認証の前に204で応答しハンドラーを呼ばないこと", func(t *testing.T) {
		t.Parallel()

		var called bool
		router := newCORSRouter(frontend, &called)

		req := httptest.NewRequest(http.MethodOptions, "/user-service/api/user/me", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
		if called {
			t.Error("OPTIONSリクエストでハンドラーが呼ばれるべきではない")
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:5173")
		}
	})

	t.Run("許可されていないオリジンのプリフライトも204で中断されること", func(t *testing.T) {
		t.Parallel()

		var called bool
		router := newCORSRouter(frontend, &called)

		req := httptest.NewRequest(http.MethodOptions, "/user-service/api/user/me", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty string", got)
		}
	})

	t.Run("資格情報を許可しないワイルドカード設定では*を返すこと", func(t *testing.T) {
		t.Parallel()

		cfg := CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedHeaders: []string{"Content-Type"},
			AllowedMethods: []string{"GET"},
		}
		var called bool
		router := newCORSRouter(cfg, &called)

		req := httptest.NewRequest(http.MethodGet, "/user-service/api/user/me", nil)
		req.Header.Set("Origin", "https://anywhere.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
		}
		if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
			t.Errorf("Access-Control-Allow-Credentials = %q, want empty string", got)
		}
	})

	t.Run("資格情報を許可するワイルドカード設定ではオリジンを返すこと", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultCORSConfig("*")
		var called bool
		router := newCORSRouter(cfg, &called)

		req := httptest.NewRequest(http.MethodGet, "/user-service/api/user/me", nil)
		req.Header.Set("Origin", "https://anywhere.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://anywhere.example.com")
		}
	})

	t.Run("空のオリジンリストではCORSヘッダーを付けないこと", func(t *testing.T) {
		t.Parallel()

		var called bool
		router := newCORSRouter(DefaultCORSConfig(), &called)

		req := httptest.NewRequest(http.MethodGet, "/user-service/api/user/me", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty string", got)
		}
	})
}
