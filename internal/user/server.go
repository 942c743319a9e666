package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nao1215/review/pkg/config"
	"github.com/nao1215/review/pkg/database"
	"github.com/nao1215/review/pkg/identity"
	"github.com/nao1215/review/pkg/message"
	"github.com/nao1215/review/pkg/middleware"
	"github.com/nao1215/review/pkg/password"
	"github.com/nao1215/review/pkg/queue"
	"github.com/nao1215/review/pkg/response"
	"github.com/nao1215/review/pkg/token"
)

const (
	// msgInvalidCredentials はログイン失敗時の応答メッセージ。
	// 未登録と誤ったパスワードを区別させないため同じ文言を返す。
	msgInvalidCredentials = "メールアドレスまたはパスワードが正しくありません"
	// verificationTTL はメールアドレス確認トークンの有効期間。
	verificationTTL = 24 * time.Hour
)

// Issuer はクレームからJWTを発行する。token.Codecが実装する。
type Issuer interface {
	Issue(claims token.Claims) (string, error)
}

// Publisher は通知メッセージをメール送信キューに投入する。queue.Publisherが実装する。
type Publisher interface {
	Publish(ctx context.Context, n message.Notification) error
}

// Server はuserサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はユーザー情報の永続化を行う。
	store *Store
	// hasher はパスワードのハッシュ化と照合を行う。
	hasher *password.Hasher
	// issuer はログイン成功時にJWTを発行する。
	issuer Issuer
	// publisher は確認メールの送信依頼をキューに投入する。
	publisher Publisher
	// verifyURL は確認メールに載せるリンクのベースURL。
	verifyURL string
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
	// dummyHash は未登録ユーザーのログイン時にも照合を行うためのハッシュ。
	dummyHash string
}

// NewServer は環境変数の設定から新しいuserサービスのサーバーを生成する。
func NewServer(ctx context.Context, port string) (*Server, error) {
	tokenCfg := config.Token()
	if err := tokenCfg.Validate(); err != nil {
		return nil, fmt.Errorf("JWT設定が不正です: %w", err)
	}

	db, err := database.Open(ctx, config.GetEnvOr("DATABASE_PATH", "/data/user.db"), migrations, migrationsDir)
	if err != nil {
		return nil, err
	}

	publisher := queue.NewPublisher(nil, "")
	if queueURL := config.GetEnvOr("EMAIL_QUEUE_URL", ""); queueURL != "" {
		sess, err := config.AWSSession()
		if err != nil {
			return nil, err
		}
		publisher = queue.NewPublisher(sqs.New(sess), queueURL)
	}

	return newServer(port, db, token.NewCodec(tokenCfg), publisher, serverOptions{
		internalSecret: config.InternalSecret(),
		verifyURL:      config.GetEnvOr("VERIFY_BASE_URL", "http://localhost:8080/user-service/api/auth/verify"),
		bcryptCost:     config.GetIntOr("BCRYPT_COST", password.DefaultCost),
	})
}

// serverOptions はServerの任意設定。
type serverOptions struct {
	// internalSecret は内部サービス間の共有シークレット。
	internalSecret string
	// verifyURL は確認メールに載せるリンクのベースURL。
	verifyURL string
	// bcryptCost はパスワードハッシュのコスト。
	bcryptCost int
}

// newServer は依存を受け取ってServerを組み立てる。
func newServer(port string, db *sql.DB, issuer Issuer, publisher Publisher, opts serverOptions) (*Server, error) {
	hasher := password.NewHasher(opts.bcryptCost)
	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.HeaderAuth(opts.internalSecret))

	s := &Server{
		router:    router,
		port:      port,
		store:     NewStore(db),
		hasher:    hasher,
		issuer:    issuer,
		publisher: publisher,
		verifyURL: strings.TrimRight(opts.verifyURL, "/"),
		now:       time.Now,
		dummyHash: dummyHash,
	}
	s.setupRoutes()
	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	auth := s.router.Group("/auth")
	{
		auth.POST("/register", s.handleRegister())
		auth.POST("/login", s.handleLogin())
		auth.GET("/verify/:token", s.handleVerifyEmail())
	}

	user := s.router.Group("/user")
	user.Use(middleware.RequireIdentity())
	{
		user.GET("/me", s.handleGetMe())
		user.GET("/:userId", s.handleGetUser())
		user.POST("", s.handleGetUsers())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "user"})
	})
}

// registerRequest はユーザー登録リクエスト。
type registerRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email,max=100"`
	// Password はパスワード。
	Password string `json:"password" binding:"required,min=6,max=100"`
	// FullName は氏名。
	FullName string `json:"fullName" binding:"required,max=100"`
	// Role はロール。省略時はUSER。
	Role string `json:"role" binding:"max=50"`
}

// Profile はユーザープロフィールのレスポンス。
type Profile struct {
	// ID はユーザーID。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// FullName は氏名。
	FullName string `json:"fullName"`
	// Role はロール。
	Role string `json:"role,omitempty"`
}

// profileOf はUserからプロフィールを作る。
func profileOf(u User) Profile {
	return Profile{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

// handleRegister はユーザー登録を行うハンドラを返す。
// 確認メールの送信依頼に失敗した場合は登録を取り消す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "リクエストが不正です")
			return
		}

		role := strings.ToUpper(strings.TrimSpace(req.Role))
		if role == "" {
			role = identity.RoleUser
		}
		// 管理者は公開の登録APIからは作成できない
		if role != identity.RoleUser {
			response.Error(c, http.StatusBadRequest, "指定できないロールです")
			return
		}

		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			log.Printf("[User] パスワードのハッシュ化に失敗: %v", err)
			response.Error(c, http.StatusInternalServerError, "ユーザー登録に失敗しました")
			return
		}

		u := User{
			ID:           uuid.NewString(),
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			PasswordHash: hash,
			FullName:     req.FullName,
			Role:         role,
			Active:       true,
		}
		verifyToken := uuid.NewString()

		err = s.store.Register(c.Request.Context(), u, verifyToken, s.now().Add(verificationTTL), func(ctx context.Context) error {
			return s.publisher.Publish(ctx, message.Notification{
				To:   u.Email,
				Type: message.TypeEmailVerification,
				Payload: map[string]string{
					"userName":         u.FullName,
					"verificationLink": s.verifyURL + "/" + verifyToken,
				},
			})
		})
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			response.Error(c, http.StatusConflict, ErrDuplicateEmail.Error())
			return
		case err != nil:
			log.Printf("[User] ユーザー登録に失敗: email=%s: %v", u.Email, err)
			response.Error(c, http.StatusInternalServerError, "ユーザー登録に失敗しました")
			return
		}

		log.Printf("[User] ユーザーを登録しました: user_id=%s", u.ID)
		response.Created(c, "ユーザーを登録しました", profileOf(u))
	}
}

// loginRequest はログインリクエスト。
type loginRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// loginResponse はログインレスポンス。
type loginResponse struct {
	// Token は発行したJWT。
	Token string `json:"token"`
	// Role はロール。
	Role string `json:"role"`
	// FullName は氏名。
	FullName string `json:"fullName"`
	// Email はメールアドレス。
	Email string `json:"email"`
}

// handleLogin はログインしてJWTを発行するハンドラを返す。
// 未登録・無効・未確認・パスワード不一致はすべて同じ404を返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "リクエストが不正です")
			return
		}

		u, err := s.store.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil && !errors.Is(err, ErrNotFound) {
			log.Printf("[User] ログイン時のユーザー取得に失敗: %v", err)
			response.Error(c, http.StatusInternalServerError, "ログインに失敗しました")
			return
		}

		hash := u.PasswordHash
		if hash == "" {
			// 応答時間でユーザーの有無を推測されないよう、未登録でも照合を行う
			hash = s.dummyHash
		}
		matched := s.hasher.Verify(req.Password, hash)
		if err != nil || !matched || !u.Active || !u.EmailVerified {
			response.Error(c, http.StatusNotFound, msgInvalidCredentials)
			return
		}

		raw, err := s.issuer.Issue(token.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: u.ID},
			Role:             u.Role,
			Email:            u.Email,
			FullName:         u.FullName,
		})
		if err != nil {
			log.Printf("[User] トークンの発行に失敗: user_id=%s: %v", u.ID, err)
			response.Error(c, http.StatusInternalServerError, "ログインに失敗しました")
			return
		}

		response.OK(c, "ログインしました", loginResponse{
			Token:    raw,
			Role:     u.Role,
			FullName: u.FullName,
			Email:    u.Email,
		})
	}
}

// handleVerifyEmail は確認メールのリンクからメールアドレスを確認済みにするハンドラを返す。
func (s *Server) handleVerifyEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := s.store.VerifyEmail(c.Request.Context(), c.Param("token"), s.now())
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "確認トークンが無効か期限切れです")
			return
		}
		if err != nil {
			log.Printf("[User] メールアドレス確認に失敗: %v", err)
			response.Error(c, http.StatusInternalServerError, "メールアドレスの確認に失敗しました")
			return
		}
		log.Printf("[User] メールアドレスを確認しました: user_id=%s", userID)
		response.OK(c, "メールアドレスを確認しました", nil)
	}
}

// handleGetMe は呼び出し元ユーザーのプロフィールを返すハンドラを返す。
func (s *Server) handleGetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.respondProfile(c, middleware.GetUserID(c))
	}
}

// handleGetUser は指定ユーザーのプロフィールを返すハンドラを返す。
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		if _, err := uuid.Parse(userID); err != nil {
			response.Error(c, http.StatusBadRequest, "ユーザーIDが不正です")
			return
		}
		s.respondProfile(c, userID)
	}
}

// respondProfile はユーザーのプロフィールを返す共通処理。
func (s *Server) respondProfile(c *gin.Context, userID string) {
	u, err := s.store.FindByID(c.Request.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		response.Error(c, http.StatusNotFound, ErrNotFound.Error())
		return
	}
	if err != nil {
		log.Printf("[User] ユーザー取得に失敗: user_id=%s: %v", userID, err)
		response.Error(c, http.StatusInternalServerError, "ユーザーの取得に失敗しました")
		return
	}
	response.OK(c, "ユーザーを取得しました", profileOf(u))
}

// handleGetUsers はIDの配列を受け取り、存在するユーザーのプロフィールを返すハンドラを返す。
// projectサービスがメンバー情報の補完に使用する。
func (s *Server) handleGetUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		var ids []string
		if err := c.ShouldBindJSON(&ids); err != nil {
			response.Error(c, http.StatusBadRequest, "リクエストが不正です")
			return
		}
		for _, id := range ids {
			if _, err := uuid.Parse(id); err != nil {
				response.Error(c, http.StatusBadRequest, "ユーザーIDが不正です")
				return
			}
		}

		users, err := s.store.FindByIDs(c.Request.Context(), ids)
		if err != nil {
			log.Printf("[User] ユーザー一覧の取得に失敗: %v", err)
			response.Error(c, http.StatusInternalServerError, "ユーザーの取得に失敗しました")
			return
		}

		profiles := make([]Profile, 0, len(users))
		for _, u := range users {
			profiles = append(profiles, profileOf(u))
		}
		response.OK(c, "ユーザーを取得しました", profiles)
	}
}
