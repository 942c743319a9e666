package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/review/pkg/database"
)

var (
	// ErrNotFound はプロジェクトまたはメンバーが存在しない場合のエラー。
	ErrNotFound = errors.New("プロジェクトが見つかりません")
	// ErrDuplicateName はプロジェクト名が既に使われている場合のエラー。
	ErrDuplicateName = errors.New("プロジェクト名は既に使用されています")
	// ErrInvitationNotFound は招待トークンが存在しないか期限切れか使用済みの場合のエラー。
	ErrInvitationNotFound = errors.New("招待が無効か期限切れです")
)

const (
	// RoleCreator はプロジェクトの作成者を表すメンバーロール。
	RoleCreator = "CREATOR"
	// RoleMember は招待されたメンバーを表すメンバーロール。
	RoleMember = "MEMBER"
	// statusActive は有効なプロジェクトの状態。
	statusActive = "ACTIVE"
)

// Project はprojectsテーブルの1行を表す。
type Project struct {
	// ID はプロジェクトID（UUID）。
	ID string `json:"id"`
	// Name はプロジェクト名。
	Name string `json:"name"`
	// Description は説明。
	Description string `json:"description"`
	// Status は状態。
	Status string `json:"status"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `json:"createdAt"`
}

// Membership はユーザーが所属するプロジェクトの一覧項目。
type Membership struct {
	// ProjectID はプロジェクトID。
	ProjectID string `json:"projectId"`
	// Name はプロジェクト名。
	Name string `json:"name"`
	// Description は説明。
	Description string `json:"description"`
	// ProjectRole はプロジェクト内のロール。
	ProjectRole string `json:"projectRole"`
	// JoinedAt は参加日時。
	JoinedAt time.Time `json:"joinedAt"`
}

// Member はproject_membersテーブルの1行を表す。
type Member struct {
	// UserID はユーザーID。
	UserID string
	// ProjectRole はプロジェクト内のロール。
	ProjectRole string
	// JoinedAt は参加日時。
	JoinedAt time.Time
}

// Invitation はinvitationsテーブルの1行を表す。
type Invitation struct {
	// Token は招待リンクに載せるトークン。
	Token string
	// ProjectID は招待先のプロジェクトID。
	ProjectID string
	// UserID は招待されたユーザーのID。
	UserID string
	// ExpiresAt は有効期限。
	ExpiresAt time.Time
}

// Store はプロジェクトとメンバーの永続化を行う。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create はプロジェクトを作成し、作成者をCREATORとして登録する。
func (s *Store) Create(ctx context.Context, p Project, creatorID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Status, p.CreatedAt.Unix(),
	); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("プロジェクトの保存に失敗: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, project_role, joined_at) VALUES (?, ?, ?, ?)`,
		p.ID, creatorID, RoleCreator, p.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("作成者の登録に失敗: %w", err)
	}
	return tx.Commit()
}

// Get はIDでプロジェクトを取得する。
func (s *Store) Get(ctx context.Context, id string) (Project, error) {
	var (
		p       Project
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, status, created_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("プロジェクトの取得に失敗: %w", err)
	}
	p.CreatedAt = time.Unix(created, 0).UTC()
	return p, nil
}

// ListByUser はユーザーが現在所属しているプロジェクトを参加日時の新しい順に返す。
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, m.project_role, m.joined_at
		FROM project_members m
		JOIN projects p ON p.id = m.project_id
		WHERE m.user_id = ? AND m.removed_at IS NULL
		ORDER BY m.joined_at DESC, p.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := []Membership{}
	for rows.Next() {
		var (
			m      Membership
			joined int64
		)
		if err := rows.Scan(&m.ProjectID, &m.Name, &m.Description, &m.ProjectRole, &joined); err != nil {
			return nil, fmt.Errorf("プロジェクトの読み込みに失敗: %w", err)
		}
		m.JoinedAt = time.Unix(joined, 0).UTC()
		list = append(list, m)
	}
	return list, rows.Err()
}

// Members はプロジェクトの現在のメンバーを参加順に返す。
func (s *Store) Members(ctx context.Context, projectID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, project_role, joined_at FROM project_members
		WHERE project_id = ? AND removed_at IS NULL
		ORDER BY joined_at ASC, user_id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []Member
	for rows.Next() {
		var (
			m      Member
			joined int64
		)
		if err := rows.Scan(&m.UserID, &m.ProjectRole, &joined); err != nil {
			return nil, fmt.Errorf("メンバーの読み込みに失敗: %w", err)
		}
		m.JoinedAt = time.Unix(joined, 0).UTC()
		members = append(members, m)
	}
	return members, rows.Err()
}

// MemberRole はユーザーのプロジェクト内ロールを返す。所属していなければErrNotFoundを返す。
func (s *Store) MemberRole(ctx context.Context, projectID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT project_role FROM project_members WHERE project_id = ? AND user_id = ? AND removed_at IS NULL`,
		projectID, userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("メンバーの取得に失敗: %w", err)
	}
	return role, nil
}

// execer はsql.DBとsql.Txの共通部分。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AddMember はユーザーをMEMBERとして追加する。以前に外されたユーザーは再参加させる。
func (s *Store) AddMember(ctx context.Context, projectID, userID string, now time.Time) error {
	return addMember(ctx, s.db, projectID, userID, now)
}

func addMember(ctx context.Context, db execer, projectID, userID string, now time.Time) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, project_role, joined_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, user_id) DO UPDATE SET removed_at = NULL, joined_at = excluded.joined_at`,
		projectID, userID, RoleMember, now.Unix(),
	); err != nil {
		return fmt.Errorf("メンバーの追加に失敗: %w", err)
	}
	return nil
}

// CreateInvitation は招待トークンを保存する。
// beforeCommitがエラーを返した場合は保存を取り消す。
func (s *Store) CreateInvitation(ctx context.Context, inv Invitation, beforeCommit func(context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO invitations (token, project_id, user_id, expires_at) VALUES (?, ?, ?, ?)`,
		inv.Token, inv.ProjectID, inv.UserID, inv.ExpiresAt.Unix(),
	); err != nil {
		return fmt.Errorf("招待トークンの保存に失敗: %w", err)
	}

	if beforeCommit != nil {
		if err := beforeCommit(ctx); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AcceptInvitation は有効な招待トークンを消費し、招待されたユーザーをMEMBERとして追加する。
// トークンは1回しか使えない。
func (s *Store) AcceptInvitation(ctx context.Context, token string, now time.Time) (Invitation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Invitation{}, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	inv := Invitation{Token: token}
	var expires int64
	err = tx.QueryRowContext(ctx,
		`SELECT project_id, user_id, expires_at FROM invitations WHERE token = ? AND expires_at > ?`,
		token, now.Unix(),
	).Scan(&inv.ProjectID, &inv.UserID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Invitation{}, ErrInvitationNotFound
	}
	if err != nil {
		return Invitation{}, fmt.Errorf("招待トークンの取得に失敗: %w", err)
	}
	inv.ExpiresAt = time.Unix(expires, 0).UTC()

	if err := addMember(ctx, tx, inv.ProjectID, inv.UserID, now); err != nil {
		return Invitation{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE token = ?`, token); err != nil {
		return Invitation{}, fmt.Errorf("招待トークンの削除に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Invitation{}, fmt.Errorf("コミットに失敗: %w", err)
	}
	return inv, nil
}

// RemoveMember はメンバーを論理削除する。所属していなければErrNotFoundを返す。
func (s *Store) RemoveMember(ctx context.Context, projectID, userID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE project_members SET removed_at = ? WHERE project_id = ? AND user_id = ? AND removed_at IS NULL`,
		now.Unix(), projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("メンバーの削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("メンバーの削除に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
