package project

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
	"github.com/google/uuid"

	"github.com/nao1215/review/pkg/config"
	"github.com/nao1215/review/pkg/database"
	"github.com/nao1215/review/pkg/httpclient"
	"github.com/nao1215/review/pkg/identity"
	"github.com/nao1215/review/pkg/message"
	"github.com/nao1215/review/pkg/middleware"
	"github.com/nao1215/review/pkg/queue"
	"github.com/nao1215/review/pkg/response"
)

const (
	// msgForbidden はプロジェクトの操作権限が無い場合の応答メッセージ。
	msgForbidden = "この操作を行う権限がありません"
	// defaultInvitationTTL は招待トークンの既定の有効期間。
	defaultInvitationTTL = 24 * time.Hour
)

// Publisher は通知メッセージをメール送信キューに投入する。queue.Publisherが実装する。
type Publisher interface {
	Publish(ctx context.Context, n message.Notification) error
}

// Server はprojectサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はプロジェクトとメンバーの永続化を行う。
	store *Store
	// users はメンバー情報の補完に使うuserサービスのクライアント。
	users UserDirectory
	// publisher は招待メールの送信依頼をキューに投入する。
	publisher Publisher
	// invitationURL は招待メールに載せるリンクのベースURL。
	invitationURL string
	// invitationTTL は招待トークンの有効期間。
	invitationTTL time.Duration
	// redirectURL は招待を受け入れた後のリダイレクト先。空の場合はJSONで応答する。
	redirectURL string
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// NewServer は環境変数の設定から新しいprojectサービスのサーバーを生成する。
func NewServer(ctx context.Context, port string) (*Server, error) {
	db, err := database.Open(ctx, config.GetEnvOr("DATABASE_PATH", "/data/project.db"), migrations, migrationsDir)
	if err != nil {
		return nil, err
	}

	secret := config.InternalSecret()
	users := NewCachedUserDirectory(
		NewUserDirectory(httpclient.New(
			config.GetEnvOr("USER_SERVICE_URL", "http://localhost:8081"),
			httpclient.WithInternalSecret(secret),
			httpclient.WithTimeout(10*time.Second),
		)),
		config.GetIntOr("USER_CACHE_SIZE", 1024),
		time.Duration(config.GetIntOr("USER_CACHE_TTL", 60))*time.Second,
	)

	publisher := queue.NewPublisher(nil, "")
	if queueURL := config.GetEnvOr("EMAIL_QUEUE_URL", ""); queueURL != "" {
		sess, err := config.AWSSession()
		if err != nil {
			return nil, err
		}
		publisher = queue.NewPublisher(sqs.New(sess), queueURL)
	}

	return newServer(port, db, users, publisher, serverOptions{
		internalSecret: secret,
		invitationURL:  config.GetEnvOr("INVITATION_BASE_URL", "http://localhost:8080/project-service/api/project/verified-invitation"),
		invitationTTL:  time.Duration(config.GetIntOr("INVITATION_TTL", int(defaultInvitationTTL/time.Second))) * time.Second,
		redirectURL:    config.GetEnvOr("INVITATION_REDIRECT_URL", ""),
	}), nil
}

// serverOptions はServerの任意設定。
type serverOptions struct {
	// internalSecret は内部サービス間の共有シークレット。
	internalSecret string
	// invitationURL は招待メールに載せるリンクのベースURL。
	invitationURL string
	// invitationTTL は招待トークンの有効期間。0以下なら既定値を使う。
	invitationTTL time.Duration
	// redirectURL は招待を受け入れた後のリダイレクト先。
	redirectURL string
}

// newServer は依存を受け取ってServerを組み立てる。
func newServer(port string, db *sql.DB, users UserDirectory, publisher Publisher, opts serverOptions) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.HeaderAuth(opts.internalSecret))

	ttl := opts.invitationTTL
	if ttl <= 0 {
		ttl = defaultInvitationTTL
	}
	s := &Server{
		router:        router,
		port:          port,
		store:         NewStore(db),
		users:         users,
		publisher:     publisher,
		invitationURL: strings.TrimRight(opts.invitationURL, "/"),
		invitationTTL: ttl,
		redirectURL:   opts.redirectURL,
		now:           time.Now,
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

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 招待リンク（認証不要）
	s.router.GET("/project/verified-invitation/:token", s.handleVerifiedInvitation())

	project := s.router.Group("/project")
	project.Use(middleware.RequireIdentity())
	{
		project.POST("", s.handleCreateProject())
		project.GET("", s.handleListProjects())
		project.GET("/:projectId", s.handleGetProject())
		project.POST("/:projectId/users", s.handleAddMember())
		project.POST("/:projectId/invite", s.handleInvite())
		project.DELETE("/:projectId/users/:userId", s.handleRemoveMember())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "project"})
	})
}

// createProjectRequest はプロジェクト作成リクエスト。
type createProjectRequest struct {
	// Name はプロジェクト名。
	Name string `json:"name" binding:"required,max=255"`
	// Description は説明。
	Description string `json:"description" binding:"max=2000"`
}

// handleCreateProject はプロジェクトを作成するハンドラを返す。
// 呼び出し元のユーザーが作成者になる。
func (s *Server) handleCreateProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := middleware.CurrentIdentity(c)
		if id.IsInternal() {
			response.Error(c, http.StatusForbidden, msgForbidden)
			return
		}

		var req createProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "リクエストが不正です")
			return
		}

		p := Project{
			ID:          uuid.NewString(),
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Status:      statusActive,
			CreatedAt:   s.now().UTC().Truncate(time.Second),
		}
		err := s.store.Create(c.Request.Context(), p, id.UserID)
		switch {
		case errors.Is(err, ErrDuplicateName):
			response.Error(c, http.StatusConflict, ErrDuplicateName.Error())
			return
		case err != nil:
			log.Printf("[Project] プロジェクト作成に失敗: user_id=%s: %v", id.UserID, err)
			response.Error(c, http.StatusInternalServerError, "プロジェクトの作成に失敗しました")
			return
		}

		log.Printf("[Project] プロジェクトを作成しました: project_id=%s user_id=%s", p.ID, id.UserID)
		response.Created(c, "プロジェクトを作成しました", p)
	}
}

// handleListProjects は呼び出し元が所属するプロジェクトの一覧を返すハンドラを返す。
func (s *Server) handleListProjects() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		list, err := s.store.ListByUser(c.Request.Context(), userID)
		if err != nil {
			log.Printf("[Project] プロジェクト一覧の取得に失敗: user_id=%s: %v", userID, err)
			response.Error(c, http.StatusInternalServerError, "プロジェクト一覧の取得に失敗しました")
			return
		}
		response.OK(c, "プロジェクト一覧を取得しました", list)
	}
}

// MemberInfo はプロジェクト詳細に含めるメンバー情報。
type MemberInfo struct {
	// UserID はユーザーID。
	UserID string `json:"userId"`
	// Email はメールアドレス。userサービスから取得できなかった場合は空。
	Email string `json:"email"`
	// FullName は氏名。userサービスから取得できなかった場合は空。
	FullName string `json:"fullName"`
	// ProjectRole はプロジェクト内のロール。
	ProjectRole string `json:"projectRole"`
	// JoinedAt は参加日時。
	JoinedAt time.Time `json:"joinedAt"`
}

// Detail はプロジェクト詳細のレスポンス。
type Detail struct {
	Project
	// Members は現在のメンバー。
	Members []MemberInfo `json:"members"`
}

// handleGetProject はプロジェクト詳細を返すハンドラを返す。
// メンバー情報はuserサービスから補完し、取得に失敗した場合は補完せずに返す。
func (s *Server) handleGetProject() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}

		if !s.canView(c, projectID) {
			return
		}
		p, ok := s.project(c, projectID)
		if !ok {
			return
		}

		members, err := s.store.Members(ctx, projectID)
		if err != nil {
			log.Printf("[Project] メンバー取得に失敗: project_id=%s: %v", projectID, err)
			response.Error(c, http.StatusInternalServerError, "プロジェクトの取得に失敗しました")
			return
		}

		ids := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
		profiles, err := s.users.Profiles(ctx, ids)
		if err != nil {
			log.Printf("[Project] メンバー情報を補完せずに返します: project_id=%s: %v", projectID, err)
			profiles = map[string]UserProfile{}
		}

		detail := Detail{Project: p, Members: make([]MemberInfo, 0, len(members))}
		for _, m := range members {
			info := MemberInfo{UserID: m.UserID, ProjectRole: m.ProjectRole, JoinedAt: m.JoinedAt}
			if prof, ok := profiles[m.UserID]; ok {
				info.Email = prof.Email
				info.FullName = prof.FullName
			}
			detail.Members = append(detail.Members, info)
		}
		response.OK(c, "プロジェクト詳細を取得しました", detail)
	}
}

// addMemberRequest はメンバー追加リクエスト。
type addMemberRequest struct {
	// UserID は追加するユーザーのID。
	UserID string `json:"userId" binding:"required,uuid"`
}

// handleAddMember はユーザーをメンバーとして追加するハンドラを返す。
// 作成者またはADMINのみ実行できる。追加するユーザーはuserサービスに存在する必要がある。
func (s *Server) handleAddMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		var req addMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "リクエストが不正です")
			return
		}
		if !s.canManage(c, projectID) {
			return
		}
		if _, ok := s.project(c, projectID); !ok {
			return
		}

		profiles, err := s.users.Profiles(ctx, []string{req.UserID})
		if err != nil {
			log.Printf("[Project] 追加するユーザーの確認に失敗: user_id=%s: %v", req.UserID, err)
			response.Error(c, http.StatusBadGateway, "ユーザー情報の取得に失敗しました")
			return
		}
		if _, ok := profiles[req.UserID]; !ok {
			response.Error(c, http.StatusNotFound, "ユーザーが見つかりません")
			return
		}

		if err := s.store.AddMember(ctx, projectID, req.UserID, s.now()); err != nil {
			log.Printf("[Project] メンバー追加に失敗: project_id=%s user_id=%s: %v", projectID, req.UserID, err)
			response.Error(c, http.StatusInternalServerError, "メンバーの追加に失敗しました")
			return
		}
		response.OK(c, "メンバーを追加しました", nil)
	}
}

// handleRemoveMember はメンバーを外すハンドラを返す。
// 作成者またはADMINのみ実行できる。作成者自身は外せない。
func (s *Server) handleRemoveMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		userID := c.Param("userId")
		if _, err := uuid.Parse(userID); err != nil {
			response.Error(c, http.StatusBadRequest, "ユーザーIDが不正です")
			return
		}
		if !s.canManage(c, projectID) {
			return
		}

		role, err := s.store.MemberRole(ctx, projectID, userID)
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "メンバーが見つかりません")
			return
		}
		if err != nil {
			log.Printf("[Project] メンバー取得に失敗: project_id=%s user_id=%s: %v", projectID, userID, err)
			response.Error(c, http.StatusInternalServerError, "メンバーの削除に失敗しました")
			return
		}
		if role == RoleCreator {
			response.Error(c, http.StatusBadRequest, "作成者はプロジェクトから外せません")
			return
		}

		if err := s.store.RemoveMember(ctx, projectID, userID, s.now()); err != nil {
			log.Printf("[Project] メンバー削除に失敗: project_id=%s user_id=%s: %v", projectID, userID, err)
			response.Error(c, http.StatusInternalServerError, "メンバーの削除に失敗しました")
			return
		}
		id, _ := middleware.CurrentIdentity(c)
		log.Printf("[Project] メンバーを外しました: project_id=%s user_id=%s by=%s", projectID, userID, id.UserID)
		response.OK(c, "メンバーを外しました", nil)
	}
}

// inviteRequest は招待リクエスト。
type inviteRequest struct {
	// UserID は招待するユーザーのID。
	UserID string `json:"userId" binding:"required,uuid"`
}

// handleInvite はユーザーをプロジェクトに招待するハンドラを返す。
// 作成者またはADMINのみ実行できる。招待トークンを保存し、招待メールの送信依頼をキューに投入する。
func (s *Server) handleInvite() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		var req inviteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "リクエストが不正です")
			return
		}
		if !s.canManage(c, projectID) {
			return
		}
		p, ok := s.project(c, projectID)
		if !ok {
			return
		}

		_, err := s.store.MemberRole(ctx, projectID, req.UserID)
		switch {
		case err == nil:
			response.Error(c, http.StatusConflict, "既にメンバーです")
			return
		case !errors.Is(err, ErrNotFound):
			log.Printf("[Project] メンバー取得に失敗: project_id=%s user_id=%s: %v", projectID, req.UserID, err)
			response.Error(c, http.StatusInternalServerError, "招待に失敗しました")
			return
		}

		profiles, err := s.users.Profiles(ctx, []string{req.UserID})
		if err != nil {
			log.Printf("[Project] 招待するユーザーの確認に失敗: user_id=%s: %v", req.UserID, err)
			response.Error(c, http.StatusBadGateway, "ユーザー情報の取得に失敗しました")
			return
		}
		invitee, ok := profiles[req.UserID]
		if !ok {
			response.Error(c, http.StatusNotFound, "ユーザーが見つかりません")
			return
		}

		id, _ := middleware.CurrentIdentity(c)
		inv := Invitation{
			Token:     uuid.NewString(),
			ProjectID: projectID,
			UserID:    req.UserID,
			ExpiresAt: s.now().Add(s.invitationTTL),
		}
		err = s.store.CreateInvitation(ctx, inv, func(ctx context.Context) error {
			return s.publisher.Publish(ctx, message.Notification{
				To:   invitee.Email,
				Type: message.TypeProjectInvitation,
				Payload: map[string]string{
					"projectName":    p.Name,
					"inviterName":    inviterName(id),
					"inviteeName":    invitee.FullName,
					"invitationLink": s.invitationURL + "/" + inv.Token,
				},
			})
		})
		if err != nil {
			log.Printf("[Project] 招待に失敗: project_id=%s user_id=%s: %v", projectID, req.UserID, err)
			response.Error(c, http.StatusInternalServerError, "招待に失敗しました")
			return
		}

		log.Printf("[Project] 招待を送信しました: project_id=%s user_id=%s by=%s", projectID, req.UserID, id.UserID)
		response.OK(c, "招待を送信しました", nil)
	}
}

// inviterName は招待メールに載せる招待者の表示名を返す。
func inviterName(id identity.Identity) string {
	if id.FullName != "" {
		return id.FullName
	}
	return id.Email
}

// handleVerifiedInvitation は招待リンクのハンドラを返す。
// トークンを消費して招待されたユーザーをメンバーに追加する。
func (s *Server) handleVerifiedInvitation() gin.HandlerFunc {
	return func(c *gin.Context) {
		inv, err := s.store.AcceptInvitation(c.Request.Context(), c.Param("token"), s.now())
		if errors.Is(err, ErrInvitationNotFound) {
			response.Error(c, http.StatusNotFound, ErrInvitationNotFound.Error())
			return
		}
		if err != nil {
			log.Printf("[Project] 招待の受け入れに失敗: %v", err)
			response.Error(c, http.StatusInternalServerError, "招待の受け入れに失敗しました")
			return
		}

		log.Printf("[Project] 招待を受け入れました: project_id=%s user_id=%s", inv.ProjectID, inv.UserID)
		if s.redirectURL != "" {
			c.Redirect(http.StatusFound, s.redirectURL)
			return
		}
		response.OK(c, "プロジェクトに参加しました", gin.H{"projectId": inv.ProjectID})
	}
}

// projectIDParam はパスのプロジェクトIDを検証して返す。不正な場合は400で応答する。
func projectIDParam(c *gin.Context) (string, bool) {
	projectID := c.Param("projectId")
	if _, err := uuid.Parse(projectID); err != nil {
		response.Error(c, http.StatusBadRequest, "プロジェクトIDが不正です")
		return "", false
	}
	return projectID, true
}

// project はプロジェクトを取得する。存在しなければ404で応答する。
func (s *Server) project(c *gin.Context, projectID string) (Project, bool) {
	p, err := s.store.Get(c.Request.Context(), projectID)
	if errors.Is(err, ErrNotFound) {
		response.Error(c, http.StatusNotFound, ErrNotFound.Error())
		return Project{}, false
	}
	if err != nil {
		log.Printf("[Project] プロジェクト取得に失敗: project_id=%s: %v", projectID, err)
		response.Error(c, http.StatusInternalServerError, "プロジェクトの取得に失敗しました")
		return Project{}, false
	}
	return p, true
}

// canView はプロジェクトの閲覧を許可するかを判定する。
// メンバー・ADMIN・内部サービスに許可する。
// メンバー以外には存在しないプロジェクトと同じ404で応答し、プロジェクトの有無を明かさない。
func (s *Server) canView(c *gin.Context, projectID string) bool {
	id, _ := middleware.CurrentIdentity(c)
	if id.IsInternal() || id.HasRole(identity.RoleAdmin) {
		return true
	}
	_, err := s.store.MemberRole(c.Request.Context(), projectID, id.UserID)
	if errors.Is(err, ErrNotFound) {
		response.Error(c, http.StatusNotFound, ErrNotFound.Error())
		return false
	}
	if err != nil {
		log.Printf("[Project] 権限の確認に失敗: project_id=%s user_id=%s: %v", projectID, id.UserID, err)
		response.Error(c, http.StatusInternalServerError, "権限の確認に失敗しました")
		return false
	}
	return true
}

// canManage はメンバーの追加・削除を許可するかを判定する。
// 作成者とADMINに許可し、それ以外は403で応答する。
func (s *Server) canManage(c *gin.Context, projectID string) bool {
	id, _ := middleware.CurrentIdentity(c)
	if id.HasRole(identity.RoleAdmin) {
		return true
	}
	if id.IsInternal() {
		response.Error(c, http.StatusForbidden, msgForbidden)
		return false
	}
	return s.requireMemberRole(c, projectID, id.UserID, []string{RoleCreator})
}

// requireMemberRole はユーザーがプロジェクトに所属し、rolesが指定されていればそのいずれかを持つかを判定する。
func (s *Server) requireMemberRole(c *gin.Context, projectID, userID string, roles []string) bool {
	role, err := s.store.MemberRole(c.Request.Context(), projectID, userID)
	if errors.Is(err, ErrNotFound) {
		response.Error(c, http.StatusForbidden, msgForbidden)
		return false
	}
	if err != nil {
		log.Printf("[Project] 権限の確認に失敗: project_id=%s user_id=%s: %v", projectID, userID, err)
		response.Error(c, http.StatusInternalServerError, "権限の確認に失敗しました")
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if role == r {
			return true
		}
	}
	response.Error(c, http.StatusForbidden, msgForbidden)
	return false
}
