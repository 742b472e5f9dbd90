// フォロー関係サービスのエントリポイント。
// ユーザー間のフォローエッジを管理し、フォロワー一覧・フォロー中一覧を
// 提供する。フォロー成立時には通知サービスへ通知作成を依頼する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/bookfeed/internal/relation"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	server, err := relation.NewServer(port)
	if err != nil {
		log.Fatalf("フォロー関係サーバーの初期化に失敗: %v", err)
	}

	log.Printf("フォロー関係サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("フォロー関係サービスの起動に失敗: %v", err)
	}
}
