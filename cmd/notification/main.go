// 通知サービスのエントリポイント。
// ドメインアクションを通知へ展開し、ユーザーごとの通知一覧と
// 既読状態を管理する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/bookfeed/internal/notification"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}

	server, err := notification.NewServer(port)
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}

	log.Printf("通知サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}
