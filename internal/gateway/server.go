package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/review/pkg/config"
	"github.com/nao1215/review/pkg/middleware"
	"github.com/nao1215/review/pkg/policy"
	"github.com/nao1215/review/pkg/token"
)

// proxyTimeout は転送先サービスの応答を待つ最大時間。
const proxyTimeout = 30 * time.Second

// サービスごとの転送元パスの接頭辞。
const (
	userPrefix         = "/user-service/api"
	projectPrefix      = "/project-service/api"
	notificationPrefix = "/notification-service/api"
)

// Backends は転送先サービスのURL。
type Backends struct {
	// User はuserサービスのURL。
	User string
	// Project はprojectサービスのURL。
	Project string
	// Notification は通知サービスのURL。
	Notification string
}

// Server はAPI GatewayのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// client は転送に使うHTTPクライアント。
	client *http.Client
}

// NewServer は環境変数の設定から新しいGatewayサーバーを生成する。
// 署名鍵が未設定の場合はすべてのトークンを拒否することになるため起動しない。
func NewServer(port string) (*Server, error) {
	tokenCfg := config.Token()
	if tokenCfg.SecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEYが設定されていません")
	}

	backends := Backends{
		User:         config.GetEnvOr("USER_SERVICE_URL", "http://localhost:8081"),
		Project:      config.GetEnvOr("PROJECT_SERVICE_URL", "http://localhost:8082"),
		Notification: config.GetEnvOr("NOTIFICATION_SERVICE_URL", "http://localhost:8083"),
	}
	return newServer(port, token.NewCodec(tokenCfg), backends, config.CORS()), nil
}

// newServer は依存を受け取ってServerを組み立てる。
// ミドルウェアの順序はCORS、トークン検証、アクセス制御の順で固定する。
func newServer(port string, verifier middleware.Verifier, backends Backends, cors middleware.CORSConfig) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cors))
	router.Use(middleware.GatewayAuth(verifier))
	router.Use(middleware.Authorize(policy.Default()))

	s := &Server{
		router: router,
		port:   port,
		client: &http.Client{Timeout: proxyTimeout},
	}
	s.setupRoutes(backends)
	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はサービスごとの転送ルートを設定する。
func (s *Server) setupRoutes(b Backends) {
	s.router.Any(userPrefix+"/*path", s.handleProxy("user", userPrefix, b.User))
	s.router.Any(projectPrefix+"/*path", s.handleProxy("project", projectPrefix, b.Project))
	s.router.Any(notificationPrefix+"/*path", s.handleProxy("notification", notificationPrefix, b.Notification))

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
}
