package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
)

// charset はSESに渡す文字コード。
const charset = "UTF-8"

// Email は送信する1通のメール。
type Email struct {
	// To は宛先。
	To string
	// Subject は件名。
	Subject string
	// Body はテキスト本文。
	Body string
}

// Mailer はメールを送信する。
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// SESMailer はAmazon SESでメールを送信するMailer。
type SESMailer struct {
	// api はSESクライアント。
	api sesiface.SESAPI
	// sender は送信元アドレス。
	sender string
}

// NewSESMailer は新しいSESMailerを生成する。
func NewSESMailer(api sesiface.SESAPI, sender string) *SESMailer {
	return &SESMailer{api: api, sender: sender}
}

// Send はテキストメールを1通送信する。
func (m *SESMailer) Send(ctx context.Context, e Email) error {
	out, err := m.api.SendEmailWithContext(ctx, &ses.SendEmailInput{
		Source:      aws.String(m.sender),
		Destination: &ses.Destination{ToAddresses: []*string{aws.String(e.To)}},
		Message: &ses.Message{
			Subject: &ses.Content{Charset: aws.String(charset), Data: aws.String(e.Subject)},
			Body: &ses.Body{
				Text: &ses.Content{Charset: aws.String(charset), Data: aws.String(e.Body)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SESでの送信に失敗: %w", err)
	}
	log.Printf("[Mailer] メールを送信しました: message_id=%s", aws.StringValue(out.MessageId))
	return nil
}

// logMailer は送信せずにログへ出力するMailer。SES_SENDERが未設定の開発環境で使う。
type logMailer struct{}

func (logMailer) Send(_ context.Context, e Email) error {
	log.Printf("[Mailer] 送信元が未設定のため送信をスキップ: to=%s subject=%q", e.To, e.Subject)
	return nil
}
