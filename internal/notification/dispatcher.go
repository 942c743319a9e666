package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/review/pkg/message"
)

// Dispatcher は通知メッセージをメールに変換して送信する。
type Dispatcher struct {
	// store はテンプレートと送信履歴を扱う。
	store *Store
	// mailer はメールの送信先。
	mailer Mailer
	// now は現在時刻を返す。
	now func() time.Time
}

// NewDispatcher は新しいDispatcherを生成する。
func NewDispatcher(store *Store, mailer Mailer) *Dispatcher {
	return &Dispatcher{store: store, mailer: mailer, now: time.Now}
}

// Dispatch はテンプレートを展開してメールを送信し、結果を送信履歴に残す。
// テンプレートが無い場合はErrTemplateNotFoundを返し、履歴には残さない。
func (d *Dispatcher) Dispatch(ctx context.Context, n message.Notification) (Delivery, error) {
	if err := n.Validate(); err != nil {
		return Delivery{}, err
	}

	tpl, err := d.store.Template(ctx, n.Type)
	if err != nil {
		return Delivery{}, err
	}
	email := Render(tpl, n)

	delivery := Delivery{
		ID:        uuid.NewString(),
		Recipient: n.To,
		Type:      n.Type,
		Subject:   email.Subject,
		Status:    statusSent,
		CreatedAt: d.now().UTC().Truncate(time.Second),
	}
	sendErr := d.mailer.Send(ctx, email)
	if sendErr != nil {
		delivery.Status = statusFailed
		delivery.Error = sendErr.Error()
	}
	if err := d.store.RecordDelivery(ctx, delivery); err != nil {
		log.Printf("[Notification] %v: delivery_id=%s", err, delivery.ID)
	}
	if sendErr != nil {
		return delivery, fmt.Errorf("メール送信に失敗: %w", sendErr)
	}

	log.Printf("[Notification] 通知を送信しました: type=%s delivery_id=%s", n.Type, delivery.ID)
	return delivery, nil
}

// HandleMessage はキューから受信した通知メッセージを処理する。
// テンプレートが無い種別は再配信しても解決しないため破棄する。
func (d *Dispatcher) HandleMessage(ctx context.Context, n message.Notification) error {
	_, err := d.Dispatch(ctx, n)
	if errors.Is(err, ErrTemplateNotFound) {
		log.Printf("[Notification] テンプレートが無いため破棄します: type=%s", n.Type)
		return nil
	}
	return err
}

// Render はテンプレートの${key}をペイロードの値で置き換える。
// ペイロードに無いキーはそのまま残す。
func Render(tpl Template, n message.Notification) Email {
	expand := func(s string) string {
		return os.Expand(s, func(key string) string {
			if v, ok := n.Payload[key]; ok {
				return v
			}
			return "${" + key + "}"
		})
	}
	return Email{To: n.To, Subject: expand(tpl.Subject), Body: expand(tpl.Body)}
}
