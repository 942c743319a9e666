package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/gin-gonic/gin"

	"github.com/nao1215/review/pkg/config"
	"github.com/nao1215/review/pkg/database"
	"github.com/nao1215/review/pkg/identity"
	"github.com/nao1215/review/pkg/message"
	"github.com/nao1215/review/pkg/middleware"
	"github.com/nao1215/review/pkg/queue"
	"github.com/nao1215/review/pkg/response"
)

const (
	// defaultHistoryLimit は送信履歴の既定の取得件数。
	defaultHistoryLimit = 50
	// maxHistoryLimit は送信履歴の最大取得件数。
	maxHistoryLimit = 200
)

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はテンプレートと送信履歴を扱う。
	store *Store
	// dispatcher は通知メッセージを送信する。
	dispatcher *Dispatcher
	// consumer はメール送信キューの受信者。キューが未設定の場合はnil。
	consumer *queue.Consumer
}

// NewServer は環境変数の設定から新しい通知サーバーを生成する。
// SES_SENDERが未設定の場合は送信せずログに出力する。
func NewServer(ctx context.Context, port string) (*Server, error) {
	db, err := database.Open(ctx, config.GetEnvOr("DATABASE_PATH", "/data/notification.db"), migrations, migrationsDir)
	if err != nil {
		return nil, err
	}

	var (
		mailer   Mailer = logMailer{}
		consumer *queue.Consumer
	)
	sender := config.GetEnvOr("SES_SENDER", "")
	queueURL := config.GetEnvOr("EMAIL_QUEUE_URL", "")
	if sender != "" || queueURL != "" {
		sess, err := config.AWSSession()
		if err != nil {
			return nil, err
		}
		if sender != "" {
			mailer = NewSESMailer(ses.New(sess), sender)
		}
		if queueURL != "" {
			consumer = queue.NewConsumer(sqs.New(sess), queueURL)
		}
	}

	s := newServer(port, db, mailer, config.InternalSecret())
	s.consumer = consumer
	return s, nil
}

// newServer は依存を受け取ってServerを組み立てる。
func newServer(port string, db *sql.DB, mailer Mailer, internalSecret string) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.HeaderAuth(internalSecret))

	store := NewStore(db)
	s := &Server{
		router:     router,
		port:       port,
		store:      store,
		dispatcher: NewDispatcher(store, mailer),
	}
	s.setupRoutes()
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

// RunConsumer はctxがキャンセルされるまでメール送信キューを処理する。
// キューが未設定の場合は何もせずに戻る。
func (s *Server) RunConsumer(ctx context.Context) error {
	if s.consumer == nil {
		log.Printf("[Notification] EMAIL_QUEUE_URLが未設定のためキューの受信を行いません")
		return nil
	}
	return s.consumer.Run(ctx, s.dispatcher.HandleMessage)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 通知送信（内部API）
	internal := s.router.Group("/internal")
	internal.Use(middleware.RequireInternal())
	{
		internal.POST("/send", s.handleSend())
	}

	// 送信履歴（管理者と内部サービス）
	notifications := s.router.Group("/notification")
	notifications.Use(middleware.RequireIdentity())
	{
		notifications.GET("/deliveries", s.handleListDeliveries())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification"})
	})
}

// sendRequest は通知送信リクエスト。
type sendRequest struct {
	// To は宛先のメールアドレス。
	To string `json:"to" binding:"required,email"`
	// Type は通知種別。
	Type message.Type `json:"type" binding:"required"`
	// Payload はテンプレートに埋め込む値。
	Payload map[string]string `json:"payload"`
}

// handleSend は通知を即時送信するハンドラを返す。
func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "リクエストが不正です")
			return
		}

		d, err := s.dispatcher.Dispatch(c.Request.Context(), message.Notification{
			To:      req.To,
			Type:    req.Type,
			Payload: req.Payload,
		})
		switch {
		case errors.Is(err, ErrTemplateNotFound):
			response.Error(c, http.StatusNotFound, ErrTemplateNotFound.Error())
			return
		case errors.Is(err, message.ErrInvalid):
			response.Error(c, http.StatusBadRequest, "リクエストが不正です")
			return
		case err != nil:
			log.Printf("[Notification] %v: delivery_id=%s", err, d.ID)
			response.Error(c, http.StatusBadGateway, "メールの送信に失敗しました")
			return
		}
		response.OK(c, "通知を送信しました", d)
	}
}

// handleListDeliveries は送信履歴を返すハンドラを返す。
// ADMINロールまたは内部サービスのみ参照できる。
func (s *Server) handleListDeliveries() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := middleware.CurrentIdentity(c)
		if !id.IsInternal() && !id.HasRole(identity.RoleAdmin) {
			response.Error(c, http.StatusForbidden, "この操作を行う権限がありません")
			return
		}

		limit := defaultHistoryLimit
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				response.Error(c, http.StatusBadRequest, "limitが不正です")
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		list, err := s.store.ListDeliveries(c.Request.Context(), limit)
		if err != nil {
			log.Printf("[Notification] %v", err)
			response.Error(c, http.StatusInternalServerError, "送信履歴の取得に失敗しました")
			return
		}
		response.OK(c, "送信履歴を取得しました", list)
	}
}
