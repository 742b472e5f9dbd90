package review

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。レビュー・評価・投稿とそれらへのリアクションを保持する。
// 評価は(user_id, book_id)で一意。いいねは複合主キーにより
// 同じユーザーから同じ対象へは高々1件となる。
const schema = `
CREATE TABLE IF NOT EXISTS reviews (
    -- レビューの一意識別子
    id TEXT PRIMARY KEY,
    -- レビューを書いたユーザーID
    user_id TEXT NOT NULL,
    -- 対象書籍のID
    book_id TEXT NOT NULL,
    -- 評価値（1〜5）
    rating INTEGER NOT NULL,
    -- レビュー本文
    body TEXT NOT NULL,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reviews_book ON reviews(book_id, created_at DESC);

CREATE TABLE IF NOT EXISTS ratings (
    -- 評価の一意識別子
    id TEXT PRIMARY KEY,
    -- 評価したユーザーID
    user_id TEXT NOT NULL,
    -- 対象書籍のID
    book_id TEXT NOT NULL,
    -- 評価値（1〜5）
    rating INTEGER NOT NULL,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    UNIQUE (user_id, book_id)
);

CREATE TABLE IF NOT EXISTS posts (
    -- 投稿の一意識別子
    id TEXT PRIMARY KEY,
    -- 投稿したユーザーID
    user_id TEXT NOT NULL,
    -- 投稿本文
    body TEXT NOT NULL,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS post_likes (
    -- いいねされた投稿のID
    post_id TEXT NOT NULL,
    -- いいねしたユーザーID
    user_id TEXT NOT NULL,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (post_id, user_id)
);

CREATE TABLE IF NOT EXISTS post_comments (
    -- コメントの一意識別子
    id TEXT PRIMARY KEY,
    -- コメント先の投稿ID
    post_id TEXT NOT NULL,
    -- コメントしたユーザーID
    user_id TEXT NOT NULL,
    -- コメント本文
    body TEXT NOT NULL,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_post_comments_post ON post_comments(post_id, created_at);

CREATE TABLE IF NOT EXISTS review_likes (
    -- いいねされたレビューのID
    review_id TEXT NOT NULL,
    -- いいねしたユーザーID
    user_id TEXT NOT NULL,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (review_id, user_id)
);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
