package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/review/pkg/database"
)

var (
	// ErrNotFound はユーザーまたは確認トークンが存在しない場合のエラー。
	ErrNotFound = errors.New("ユーザーが見つかりません")
	// ErrDuplicateEmail はメールアドレスが既に登録されている場合のエラー。
	ErrDuplicateEmail = errors.New("メールアドレスは既に使用されています")
)

// User はusersテーブルの1行を表す。
type User struct {
	// ID はユーザーID（UUID）。
	ID string
	// Email はメールアドレス。
	Email string
	// PasswordHash はbcryptでハッシュ化したパスワード。
	PasswordHash string
	// FullName は氏名。
	FullName string
	// Role はロール（USERまたはADMIN）。
	Role string
	// Active は有効なアカウントかどうか。
	Active bool
	// EmailVerified はメールアドレス確認済みかどうか。
	EmailVerified bool
}

// Store はユーザー情報の永続化を行う。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// userColumns はusersテーブルから取得する列。scanUserの順序と一致させること。
const userColumns = "id, email, password_hash, full_name, role, is_active, email_verified"

// scanner はsql.Rowとsql.Rowsの共通インターフェース。
type scanner interface {
	Scan(dest ...any) error
}

// scanUser は1行をUserに読み込む。
func scanUser(s scanner) (User, error) {
	var u User
	if err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.Active, &u.EmailVerified); err != nil {
		return User{}, err
	}
	return u, nil
}

// Register はユーザーと確認トークンを1つのトランザクションで保存する。
// beforeCommitがエラーを返した場合は保存を取り消す。
func (s *Store) Register(ctx context.Context, u User, token string, expiresAt time.Time, beforeCommit func(context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, full_name, role, is_active, email_verified) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Role, u.Active, u.EmailVerified,
	); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("ユーザーの保存に失敗: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO verification_tokens (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, u.ID, expiresAt.Unix(),
	); err != nil {
		return fmt.Errorf("確認トークンの保存に失敗: %w", err)
	}

	if beforeCommit != nil {
		if err := beforeCommit(ctx); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// VerifyEmail は有効期限内の確認トークンに対応するユーザーを確認済みにし、ユーザーIDを返す。
// トークンは使用後に削除する。
func (s *Store) VerifyEmail(ctx context.Context, token string, now time.Time) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var userID string
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM verification_tokens WHERE token = ? AND expires_at > ?`,
		token, now.Unix(),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("確認トークンの取得に失敗: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET email_verified = 1, updated_at = datetime('now') WHERE id = ?`, userID,
	); err != nil {
		return "", fmt.Errorf("ユーザーの更新に失敗: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM verification_tokens WHERE token = ?`, token); err != nil {
		return "", fmt.Errorf("確認トークンの削除に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("コミットに失敗: %w", err)
	}
	return userID, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。
func (s *Store) FindByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

// FindByID はIDでユーザーを取得する。
func (s *Store) FindByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

// FindByIDs は複数のIDでユーザーを取得する。
// 結果はidsの順序に並べ、存在しないIDは含めない。
func (s *Store) FindByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの読み込みに失敗: %w", err)
		}
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}

	users := make([]User, 0, len(byID))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}
