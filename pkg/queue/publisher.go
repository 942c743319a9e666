package queue

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	"github.com/nao1215/review/pkg/message"
)

// Publisher はメール送信キューに通知メッセージを投入する。
type Publisher struct {
	// api はSQSクライアント。
	api sqsiface.SQSAPI
	// queueURL は投入先キューのURL。
	queueURL string
}

// NewPublisher は新しいPublisherを生成する。
// queueURLが空の場合は送信せずログ出力のみを行う。ローカル開発用。
func NewPublisher(api sqsiface.SQSAPI, queueURL string) *Publisher {
	return &Publisher{api: api, queueURL: queueURL}
}

// Publish は通知メッセージをキューに投入する。
func (p *Publisher) Publish(ctx context.Context, n message.Notification) error {
	body, err := message.Encode(n)
	if err != nil {
		return err
	}

	if p.api == nil || p.queueURL == "" {
		log.Printf("[Queue] キュー未設定のため送信をスキップします: type=%s", n.Type)
		return nil
	}

	out, err := p.api.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("通知メッセージの送信に失敗: %w", err)
	}
	log.Printf("[Queue] 通知メッセージを送信しました: type=%s message_id=%s", n.Type, aws.StringValue(out.MessageId))
	return nil
}
