// Package notificationdb はnotificationサービスのデータベースアクセス層を提供する。
// sqlcのクエリ実行オブジェクトと同じ呼び出し規約に揃えている。
package notificationdb

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

// Queries は通知テーブルへのクエリ実行オブジェクト。
type Queries struct {
	db DBTX
}

// Notification は通知テーブルの1行を表す。
type Notification struct {
	// ID は通知の一意識別子。
	ID string
	// RecipientID は通知の受信者のユーザーID。
	RecipientID string
	// SenderID は通知を発生させたユーザーID。
	SenderID string
	// Kind は通知の種類。
	Kind string
	// PostID は参照先の投稿ID。該当しない種類では空文字列。
	PostID string
	// ReviewID は参照先のレビューID。該当しない種類では空文字列。
	ReviewID string
	// BookID は参照先の書籍ID。該当しない種類では空文字列。
	BookID string
	// Comment はコメント本文の抜粋。該当しない種類では空文字列。
	Comment string
	// ActionID は通知を発生させたアクションの識別子。
	ActionID string
	// IsRead は既読フラグ（0: 未読, 1: 既読）。
	IsRead int64
	// CreatedAt は通知の作成日時。
	CreatedAt time.Time
}

const notificationColumns = `id, recipient_id, sender_id, kind, post_id, review_id, book_id, comment, action_id, is_read, created_at`

// scanNotification は1行を読み取ってNotificationに変換する。
func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID, &n.RecipientID, &n.SenderID, &n.Kind,
		&n.PostID, &n.ReviewID, &n.BookID, &n.Comment,
		&n.ActionID, &n.IsRead, &n.CreatedAt,
	)
	return n, err
}

// CreateNotificationParams はCreateNotificationのパラメータ。
type CreateNotificationParams struct {
	// ID は通知の一意識別子。
	ID string
	// RecipientID は通知の受信者のユーザーID。
	RecipientID string
	// SenderID は通知を発生させたユーザーID。
	SenderID string
	// Kind は通知の種類。
	Kind string
	// PostID は参照先の投稿ID。
	PostID string
	// ReviewID は参照先のレビューID。
	ReviewID string
	// BookID は参照先の書籍ID。
	BookID string
	// Comment はコメント本文の抜粋。
	Comment string
	// ActionID は通知を発生させたアクションの識別子。
	ActionID string
}

// CreateNotification は通知を1件挿入し、挿入された行数を返す。
// 同一の(recipient_id, action_id)ペアが既に存在する場合は何もせず0を返す。
func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notifications
		 (id, recipient_id, sender_id, kind, post_id, review_id, book_id, comment, action_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.RecipientID, arg.SenderID, arg.Kind,
		arg.PostID, arg.ReviewID, arg.BookID, arg.Comment, arg.ActionID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListNotificationsByRecipient は受信者の全通知を新しい順に返す。
func (q *Queries) ListNotificationsByRecipient(ctx context.Context, recipientID string) ([]Notification, error) {
	return q.listNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE recipient_id = ? ORDER BY created_at DESC, id`,
		recipientID,
	)
}

// ListUnreadNotifications は受信者の未読通知を新しい順に返す。
func (q *Queries) ListUnreadNotifications(ctx context.Context, recipientID string) ([]Notification, error) {
	return q.listNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE recipient_id = ? AND is_read = 0 ORDER BY created_at DESC, id`,
		recipientID,
	)
}

// listNotifications は通知一覧クエリの共通処理。
func (q *Queries) listNotifications(ctx context.Context, query string, args ...any) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var notifications []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// CountUnreadNotifications は受信者の未読通知数を返す。
func (q *Queries) CountUnreadNotifications(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0`,
		recipientID,
	).Scan(&count)
	return count, err
}

// GetNotificationByID は指定IDの通知を1件取得する。
func (q *Queries) GetNotificationByID(ctx context.Context, id string) (Notification, error) {
	return scanNotification(q.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`,
		id,
	))
}

// MarkAsRead は指定IDの通知を既読にする。既読の通知に対しては何もしない。
func (q *Queries) MarkAsRead(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ?`,
		id,
	)
	return err
}

// MarkAllAsRead は受信者の全未読通知を既読にし、更新した行数を返す。
func (q *Queries) MarkAllAsRead(ctx context.Context, recipientID string) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0`,
		recipientID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteNotification は指定IDの通知を削除する。
func (q *Queries) DeleteNotification(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ?`,
		id,
	)
	return err
}
