// projectサービスのエントリポイント。
// プロジェクトとメンバーの管理を担当する。メンバー情報はuserサービスから取得する。
package main

import (
	"context"
	"log"

	"github.com/nao1215/review/internal/project"
	"github.com/nao1215/review/pkg/config"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	port := config.GetEnvOr("PORT", "8082")

	server, err := project.NewServer(context.Background(), port)
	if err != nil {
		log.Fatalf("projectサーバーの初期化に失敗: %v", err)
	}

	log.Printf("projectサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("projectサービスの起動に失敗: %v", err)
	}
}
