package relation

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。フォロー関係は有向エッジの明示テーブルとして保持する。
// (follower, followee)の主キー制約により、同一ペアのエッジは
// 並行リクエスト下でも高々1本しか存在できない。
const schema = `
CREATE TABLE IF NOT EXISTS follow_edges (
    -- フォローする側のユーザーID
    follower_id TEXT NOT NULL,
    -- フォローされる側のユーザーID
    followee_id TEXT NOT NULL,
    -- エッジの作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (follower_id, followee_id)
);

-- フォロワー一覧の逆引き検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_follow_edges_followee
    ON follow_edges(followee_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
