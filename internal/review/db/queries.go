// Package reviewdb はreviewサービスのデータベースアクセス層を提供する。
// sqlcのクエリ実行オブジェクトと同じ呼び出し規約に揃えている。
package reviewdb

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

// Queries はレビュー関連テーブルへのクエリ実行オブジェクト。
type Queries struct {
	db DBTX
}

// Review はレビューテーブルの1行を表す。
type Review struct {
	// ID はレビューの一意識別子。
	ID string
	// UserID はレビューを書いたユーザーID。
	UserID string
	// BookID は対象書籍のID。
	BookID string
	// Rating は評価値（1〜5）。
	Rating int64
	// Body はレビュー本文。
	Body string
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// CreateReviewParams はCreateReviewのパラメータ。
type CreateReviewParams struct {
	// ID はレビューの一意識別子。
	ID string
	// UserID はレビューを書いたユーザーID。
	UserID string
	// BookID は対象書籍のID。
	BookID string
	// Rating は評価値（1〜5）。
	Rating int64
	// Body はレビュー本文。
	Body string
}

// CreateReview はレビューを1件挿入する。
func (q *Queries) CreateReview(ctx context.Context, arg CreateReviewParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO reviews (id, user_id, book_id, rating, body) VALUES (?, ?, ?, ?, ?)`,
		arg.ID, arg.UserID, arg.BookID, arg.Rating, arg.Body,
	)
	return err
}

// GetReviewByID は指定IDのレビューを1件取得する。
func (q *Queries) GetReviewByID(ctx context.Context, id string) (Review, error) {
	var r Review
	err := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, book_id, rating, body, created_at FROM reviews WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.UserID, &r.BookID, &r.Rating, &r.Body, &r.CreatedAt)
	return r, err
}

// ListReviewsByBookID は指定書籍のレビューを新しい順に返す。
func (q *Queries) ListReviewsByBookID(ctx context.Context, bookID string) ([]Review, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, book_id, rating, body, created_at FROM reviews
		 WHERE book_id = ? ORDER BY created_at DESC, id`,
		bookID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.UserID, &r.BookID, &r.Rating, &r.Body, &r.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// CreateReviewLikeParams はCreateReviewLikeのパラメータ。
type CreateReviewLikeParams struct {
	// ReviewID はいいねされたレビューのID。
	ReviewID string
	// UserID はいいねしたユーザーID。
	UserID string
}

// CreateReviewLike はレビューへのいいねを1件挿入する。
// 同じユーザーから同じレビューへのいいねは主キー制約違反となる。
func (q *Queries) CreateReviewLike(ctx context.Context, arg CreateReviewLikeParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO review_likes (review_id, user_id) VALUES (?, ?)`,
		arg.ReviewID, arg.UserID,
	)
	return err
}

// Rating は評価テーブルの1行を表す。
type Rating struct {
	// ID は評価の一意識別子。
	ID string
	// UserID は評価したユーザーID。
	UserID string
	// BookID は対象書籍のID。
	BookID string
	// Rating は評価値（1〜5）。
	Rating int64
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// CreateRatingParams はCreateRatingのパラメータ。
type CreateRatingParams struct {
	// ID は評価の一意識別子。
	ID string
	// UserID は評価したユーザーID。
	UserID string
	// BookID は対象書籍のID。
	BookID string
	// Rating は評価値（1〜5）。
	Rating int64
}

// CreateRating は評価を1件挿入する。
// 同じユーザーから同じ書籍への評価は一意制約違反となる。
func (q *Queries) CreateRating(ctx context.Context, arg CreateRatingParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO ratings (id, user_id, book_id, rating) VALUES (?, ?, ?, ?)`,
		arg.ID, arg.UserID, arg.BookID, arg.Rating,
	)
	return err
}

// Post は投稿テーブルの1行を表す。
type Post struct {
	// ID は投稿の一意識別子。
	ID string
	// UserID は投稿したユーザーID。
	UserID string
	// Body は投稿本文。
	Body string
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// CreatePostParams はCreatePostのパラメータ。
type CreatePostParams struct {
	// ID は投稿の一意識別子。
	ID string
	// UserID は投稿したユーザーID。
	UserID string
	// Body は投稿本文。
	Body string
}

// CreatePost は投稿を1件挿入する。
func (q *Queries) CreatePost(ctx context.Context, arg CreatePostParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, body) VALUES (?, ?, ?)`,
		arg.ID, arg.UserID, arg.Body,
	)
	return err
}

// GetPostByID は指定IDの投稿を1件取得する。
func (q *Queries) GetPostByID(ctx context.Context, id string) (Post, error) {
	var p Post
	err := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, body, created_at FROM posts WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.UserID, &p.Body, &p.CreatedAt)
	return p, err
}

// ListPosts は全投稿を新しい順に返す。
func (q *Queries) ListPosts(ctx context.Context) ([]Post, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, body, created_at FROM posts ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Body, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CreatePostLikeParams はCreatePostLikeのパラメータ。
type CreatePostLikeParams struct {
	// PostID はいいねされた投稿のID。
	PostID string
	// UserID はいいねしたユーザーID。
	UserID string
}

// CreatePostLike は投稿へのいいねを1件挿入する。
// 同じユーザーから同じ投稿へのいいねは主キー制約違反となる。
func (q *Queries) CreatePostLike(ctx context.Context, arg CreatePostLikeParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO post_likes (post_id, user_id) VALUES (?, ?)`,
		arg.PostID, arg.UserID,
	)
	return err
}

// PostComment はコメントテーブルの1行を表す。
type PostComment struct {
	// ID はコメントの一意識別子。
	ID string
	// PostID はコメント先の投稿ID。
	PostID string
	// UserID はコメントしたユーザーID。
	UserID string
	// Body はコメント本文。
	Body string
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// CreatePostCommentParams はCreatePostCommentのパラメータ。
type CreatePostCommentParams struct {
	// ID はコメントの一意識別子。
	ID string
	// PostID はコメント先の投稿ID。
	PostID string
	// UserID はコメントしたユーザーID。
	UserID string
	// Body はコメント本文。
	Body string
}

// CreatePostComment は投稿へのコメントを1件挿入する。
func (q *Queries) CreatePostComment(ctx context.Context, arg CreatePostCommentParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO post_comments (id, post_id, user_id, body) VALUES (?, ?, ?, ?)`,
		arg.ID, arg.PostID, arg.UserID, arg.Body,
	)
	return err
}

// ListCommentsByPostID は指定投稿のコメントを古い順に返す。
func (q *Queries) ListCommentsByPostID(ctx context.Context, postID string) ([]PostComment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, post_id, user_id, body, created_at FROM post_comments
		 WHERE post_id = ? ORDER BY created_at, id`,
		postID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var comments []PostComment
	for rows.Next() {
		var pc PostComment
		if err := rows.Scan(&pc.ID, &pc.PostID, &pc.UserID, &pc.Body, &pc.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, pc)
	}
	return comments, rows.Err()
}
