// レビューサービスのエントリポイント。
// 書籍レビュー・評価・投稿とそれらへのリアクションを管理し、
// 操作成功後に通知サービスへドメインアクションをemitする。
package main

import (
	"log"
	"os"

	"github.com/nao1215/bookfeed/internal/review"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server, err := review.NewServer(port)
	if err != nil {
		log.Fatalf("レビューサーバーの初期化に失敗: %v", err)
	}

	log.Printf("レビューサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("レビューサービスの起動に失敗: %v", err)
	}
}
