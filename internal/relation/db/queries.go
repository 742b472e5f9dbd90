// Package relationdb はrelationサービスのデータベースアクセス層を提供する。
// sqlcのクエリ実行オブジェクトと同じ呼び出し規約に揃えている。
package relationdb

import (
	"context"
	"database/sql"
	"time"
)

// DBTX はデータベース接続またはトランザクションを抽象化するインターフェース。
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// New は新しいクエリ実行オブジェクトを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries はフォロー関係テーブルへのクエリ実行オブジェクト。
type Queries struct {
	db DBTX
}

// FollowEdge はフォロー関係の1エッジ（follower → followee）を表す。
type FollowEdge struct {
	// FollowerID はフォローする側のユーザーID。
	FollowerID string
	// FolloweeID はフォローされる側のユーザーID。
	FolloweeID string
	// CreatedAt はエッジの作成日時。
	CreatedAt time.Time
}

// CreateFollowEdgeParams はCreateFollowEdgeのパラメータ。
type CreateFollowEdgeParams struct {
	// FollowerID はフォローする側のユーザーID。
	FollowerID string
	// FolloweeID はフォローされる側のユーザーID。
	FolloweeID string
}

// CreateFollowEdge はフォローエッジを1件挿入する。
// 同じ(follower, followee)ペアが既に存在する場合は主キー制約違反となる。
func (q *Queries) CreateFollowEdge(ctx context.Context, arg CreateFollowEdgeParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO follow_edges (follower_id, followee_id) VALUES (?, ?)`,
		arg.FollowerID, arg.FolloweeID,
	)
	return err
}

// DeleteFollowEdgeParams はDeleteFollowEdgeのパラメータ。
type DeleteFollowEdgeParams struct {
	// FollowerID はフォローする側のユーザーID。
	FollowerID string
	// FolloweeID はフォローされる側のユーザーID。
	FolloweeID string
}

// DeleteFollowEdge はフォローエッジを削除し、削除した行数を返す。
func (q *Queries) DeleteFollowEdge(ctx context.Context, arg DeleteFollowEdgeParams) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		`DELETE FROM follow_edges WHERE follower_id = ? AND followee_id = ?`,
		arg.FollowerID, arg.FolloweeID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListFollowerIDs は指定ユーザーをフォローしているユーザーIDの一覧を返す。
func (q *Queries) ListFollowerIDs(ctx context.Context, followeeID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT follower_id FROM follow_edges WHERE followee_id = ? ORDER BY created_at`,
		followeeID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListFollowingIDs は指定ユーザーがフォローしているユーザーIDの一覧を返す。
func (q *Queries) ListFollowingIDs(ctx context.Context, followerID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT followee_id FROM follow_edges WHERE follower_id = ? ORDER BY created_at`,
		followerID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
