// API Gatewayのエントリポイント。
// Bearerトークンの検証、アクセス制御、各サービスへのリクエスト転送を担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"log"

	"github.com/nao1215/review/internal/gateway"
	"github.com/nao1215/review/pkg/config"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	port := config.GetEnvOr("PORT", "8080")

	server, err := gateway.NewServer(port)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Gatewayサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
