package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	"github.com/nao1215/review/pkg/message"
)

const (
	// maxMessages は1回の受信で取得する最大メッセージ数。SQSの上限は10。
	maxMessages = 10
	// waitSeconds はロングポーリングの待機秒数。
	waitSeconds = 20
	// retryInterval は受信エラー後に再試行するまでの待機時間。
	retryInterval = 5 * time.Second
)

// Handler は受信した通知メッセージを処理する。
// エラーを返したメッセージはキューに残り再配信される。
type Handler func(ctx context.Context, n message.Notification) error

// Consumer はキューから通知メッセージを受信してHandlerに渡す。
type Consumer struct {
	// api はSQSクライアント。
	api sqsiface.SQSAPI
	// queueURL は受信元キューのURL。
	queueURL string
	// waitSeconds はロングポーリングの待機秒数。
	waitSeconds int64
}

// NewConsumer は新しいConsumerを生成する。
func NewConsumer(api sqsiface.SQSAPI, queueURL string) *Consumer {
	return &Consumer{api: api, queueURL: queueURL, waitSeconds: waitSeconds}
}

// Run はctxがキャンセルされるまで受信を繰り返す。
// 受信エラーはログに出力して一定時間後に再試行する。
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	log.Printf("[Queue] 受信を開始します: %s", c.queueURL)
	for {
		if err := c.Poll(ctx, h); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("[Queue] %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(retryInterval):
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	log.Printf("[Queue] 受信を停止しました: %s", c.queueURL)
	return nil
}

// Poll は1回分のメッセージを受信して処理する。
func (c *Consumer) Poll(ctx context.Context, h Handler) error {
	out, err := c.api.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: aws.Int64(maxMessages),
		WaitTimeSeconds:     aws.Int64(c.waitSeconds),
	})
	if err != nil {
		return fmt.Errorf("メッセージの受信に失敗: %w", err)
	}

	for _, m := range out.Messages {
		c.handle(ctx, m, h)
	}
	return nil
}

// handle は1件のメッセージを処理し、成功またはデコード不能ならキューから削除する。
func (c *Consumer) handle(ctx context.Context, m *sqs.Message, h Handler) {
	id := aws.StringValue(m.MessageId)

	n, err := message.Decode(aws.StringValue(m.Body))
	if err != nil {
		if errors.Is(err, message.ErrInvalid) {
			log.Printf("[Queue] 不正なメッセージを破棄します: message_id=%s: %v", id, err)
			c.delete(ctx, m)
		}
		return
	}

	if err := h(ctx, n); err != nil {
		log.Printf("[Queue] メッセージの処理に失敗（再配信待ち）: message_id=%s type=%s: %v", id, n.Type, err)
		return
	}
	c.delete(ctx, m)
}

// delete はメッセージをキューから削除する。
func (c *Consumer) delete(ctx context.Context, m *sqs.Message) {
	if _, err := c.api.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		log.Printf("[Queue] メッセージの削除に失敗: message_id=%s: %v", aws.StringValue(m.MessageId), err)
	}
}
