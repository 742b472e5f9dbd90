// Package gatewaydb はgatewayサービスのデータベースアクセス層を提供する。
// sqlcのクエリ実行オブジェクトと同じ呼び出し規約に揃えている。
package gatewaydb

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

// Queries はユーザーテーブルへのクエリ実行オブジェクト。
type Queries struct {
	db DBTX
}

// User はユーザーテーブルの1行を表す。
type User struct {
	// ID はユーザーの一意識別子。
	ID string
	// Provider は認証プロバイダー（github, google, dev）。
	Provider string
	// ProviderUserID はプロバイダー側のユーザーID。
	ProviderUserID string
	// Email はメールアドレス。
	Email string
	// DisplayName は表示名。
	DisplayName string
	// AvatarUrl はアバター画像のURL。
	AvatarUrl string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// LastLoginAt は最終ログイン日時。
	LastLoginAt time.Time
}

// CreateUserParams はCreateUserのパラメータ。
type CreateUserParams struct {
	// ID はユーザーの一意識別子。
	ID string
	// Provider は認証プロバイダー。
	Provider string
	// ProviderUserID はプロバイダー側のユーザーID。
	ProviderUserID string
	// Email はメールアドレス。
	Email string
	// DisplayName は表示名。
	DisplayName string
	// AvatarUrl はアバター画像のURL。
	AvatarUrl string
}

// CreateUser はユーザーを1件挿入する。
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (id, provider, provider_user_id, email, display_name, avatar_url)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.Provider, arg.ProviderUserID, arg.Email, arg.DisplayName, arg.AvatarUrl,
	)
	return err
}

// GetUserByIDは指定IDのユーザーを1件取得する。
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return q.scanUser(q.db.QueryRowContext(ctx,
		`SELECT id, provider, provider_user_id, email, display_name, avatar_url, created_at, last_login_at
		 FROM users WHERE id = ?`,
		id,
	))
}

// GetUserByProviderParams はGetUserByProviderのパラメータ。
type GetUserByProviderParams struct {
	// Provider は認証プロバイダー。
	Provider string
	// ProviderUserID はプロバイダー側のユーザーID。
	ProviderUserID string
}

// GetUserByProvider は認証プロバイダーの組でユーザーを1件取得する。
func (q *Queries) GetUserByProvider(ctx context.Context, arg GetUserByProviderParams) (User, error) {
	return q.scanUser(q.db.QueryRowContext(ctx,
		`SELECT id, provider, provider_user_id, email, display_name, avatar_url, created_at, last_login_at
		 FROM users WHERE provider = ? AND provider_user_id = ?`,
		arg.Provider, arg.ProviderUserID,
	))
}

// UpdateLastLogin は最終ログイン日時を現在時刻に更新する。
func (q *Queries) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = datetime('now') WHERE id = ?`,
		id,
	)
	return err
}

// scanUser は1行を読み取ってUserに変換する。
func (q *Queries) scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Provider, &u.ProviderUserID, &u.Email,
		&u.DisplayName, &u.AvatarUrl, &u.CreatedAt, &u.LastLoginAt,
	)
	return u, err
}
