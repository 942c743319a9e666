package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/review/pkg/message"
)

// ErrTemplateNotFound は通知種別に対応する有効なテンプレートが無い場合のエラー。
var ErrTemplateNotFound = errors.New("テンプレートが見つかりません")

const (
	// statusSent は送信に成功した配信の状態。
	statusSent = "SENT"
	// statusFailed は送信に失敗した配信の状態。
	statusFailed = "FAILED"
)

// Template はtemplatesテーブルの1行を表す。
type Template struct {
	// Type は通知種別。
	Type message.Type
	// Subject は件名のテンプレート。
	Subject string
	// Body は本文のテンプレート。
	Body string
}

// Delivery は1件の送信結果。
type Delivery struct {
	// ID は配信ID（UUID）。
	ID string `json:"id"`
	// Recipient は宛先のメールアドレス。
	Recipient string `json:"recipient"`
	// Type は通知種別。
	Type message.Type `json:"type"`
	// Subject は送信した件名。
	Subject string `json:"subject"`
	// Status はSENTまたはFAILED。
	Status string `json:"status"`
	// Error は失敗理由。
	Error string `json:"error,omitempty"`
	// CreatedAt は記録日時。
	CreatedAt time.Time `json:"createdAt"`
}

// Store はテンプレートと送信履歴の永続化を行う。
type Store struct {
	db *sql.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Template は通知種別に対応する有効なテンプレートを返す。
func (s *Store) Template(ctx context.Context, t message.Type) (Template, error) {
	tpl := Template{Type: t}
	err := s.db.QueryRowContext(ctx,
		`SELECT subject, body FROM templates WHERE type = ? AND active = 1`, string(t),
	).Scan(&tpl.Subject, &tpl.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrTemplateNotFound
	}
	if err != nil {
		return Template{}, fmt.Errorf("テンプレートの取得に失敗: %w", err)
	}
	return tpl, nil
}

// RecordDelivery は送信結果を保存する。
func (s *Store) RecordDelivery(ctx context.Context, d Delivery) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, recipient, type, subject, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Recipient, string(d.Type), d.Subject, d.Status, d.Error, d.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("送信履歴の保存に失敗: %w", err)
	}
	return nil
}

// ListDeliveries は送信履歴を新しい順に最大limit件返す。
func (s *Store) ListDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient, type, subject, status, error, created_at
		FROM deliveries ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("送信履歴の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := []Delivery{}
	for rows.Next() {
		var (
			d       Delivery
			typ     string
			created int64
		)
		if err := rows.Scan(&d.ID, &d.Recipient, &typ, &d.Subject, &d.Status, &d.Error, &created); err != nil {
			return nil, fmt.Errorf("送信履歴の読み込みに失敗: %w", err)
		}
		d.Type = message.Type(typ)
		d.CreatedAt = time.Unix(created, 0).UTC()
		list = append(list, d)
	}
	return list, rows.Err()
}
