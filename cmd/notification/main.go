// 通知サービスのエントリポイント。
// メール送信キューを受信してテンプレートからメールを組み立て、SESで送信する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/review/internal/notification"
	"github.com/nao1215/review/pkg/config"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	port := config.GetEnvOr("PORT", "8083")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := notification.NewServer(ctx, port)
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}

	go func() {
		if err := server.RunConsumer(ctx); err != nil {
			log.Printf("キューの受信が停止しました: %v", err)
		}
	}()

	log.Printf("通知サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}
