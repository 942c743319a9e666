// userサービスのエントリポイント。
// ユーザー登録、メールアドレス確認、ログインによるトークン発行、プロフィール参照を担当する。
package main

import (
	"context"
	"log"

	"github.com/nao1215/review/internal/user"
	"github.com/nao1215/review/pkg/config"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	port := config.GetEnvOr("PORT", "8081")

	server, err := user.NewServer(context.Background(), port)
	if err != nil {
		log.Fatalf("userサーバーの初期化に失敗: %v", err)
	}

	log.Printf("userサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("userサービスの起動に失敗: %v", err)
	}
}
