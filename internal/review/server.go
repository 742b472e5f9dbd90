package review

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	reviewdb "github.com/nao1215/bookfeed/internal/review/db"
	"github.com/nao1215/bookfeed/pkg/action"
	"github.com/nao1215/bookfeed/pkg/httpclient"
	"github.com/nao1215/bookfeed/pkg/middleware"
)

// commentExcerptLen は通知に載せるコメント抜粋の最大文字数。
const commentExcerptLen = 100

// Server はレビューサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はクエリ実行オブジェクト。
	queries *reviewdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// notificationClient は通知サービスへの通信クライアント。
	notificationClient *httpclient.Client
}

// NewServer は新しいレビューサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", "/data/review.db?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	notificationURL := os.Getenv("NOTIFICATION_URL")
	if notificationURL == "" {
		notificationURL = "http://localhost:8083"
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.Metrics("review"))

	s := &Server{
		router:             router,
		port:               port,
		queries:            reviewdb.New(sqlDB),
		db:                 sqlDB,
		notificationClient: httpclient.New(notificationURL),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	{
		reviews := api.Group("/reviews")
		{
			// レビュー投稿
			reviews.POST("", s.handleCreateReview())
			// レビュー一覧取得
			reviews.GET("", s.handleListReviews())
			// レビューにいいね
			reviews.POST("/:id/like", s.handleLikeReview())
		}

		ratings := api.Group("/ratings")
		{
			// 評価登録
			ratings.POST("", s.handleCreateRating())
		}

		posts := api.Group("/posts")
		{
			// 投稿作成
			posts.POST("", s.handleCreatePost())
			// 投稿一覧取得
			posts.GET("", s.handleListPosts())
			// 投稿詳細取得
			posts.GET("/:id", s.handleGetPost())
			// 投稿にいいね
			posts.POST("/:id/like", s.handleLikePost())
			// 投稿にコメント
			posts.POST("/:id/comments", s.handleCommentPost())
			// 投稿のコメント一覧取得
			posts.GET("/:id/comments", s.handleListComments())
		}
	}

	// メトリクス公開
	s.router.GET("/metrics", middleware.MetricsHandler())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "review"})
	})
}

// isUniqueViolation はSQLiteの一意制約違反エラーかどうかを判定する。
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// createReviewRequest はレビュー投稿リクエストのJSON構造。
type createReviewRequest struct {
	// BookID は対象書籍のID。
	BookID string `json:"book_id" binding:"required"`
	// Rating は評価値（1〜5）。
	Rating int64 `json:"rating" binding:"required,min=1,max=5"`
	// Body はレビュー本文。
	Body string `json:"body" binding:"required"`
}

// createRatingRequest は評価登録リクエストのJSON構造。
type createRatingRequest struct {
	// BookID は対象書籍のID。
	BookID string `json:"book_id" binding:"required"`
	// Rating は評価値（1〜5）。
	Rating int64 `json:"rating" binding:"required,min=1,max=5"`
}

// createPostRequest は投稿作成リクエストのJSON構造。
type createPostRequest struct {
	// Body は投稿本文。
	Body string `json:"body" binding:"required"`
}

// createCommentRequest はコメント投稿リクエストのJSON構造。
type createCommentRequest struct {
	// Body はコメント本文。
	Body string `json:"body" binding:"required"`
}

// reviewResponse はレビューのJSONレスポンス構造。
type reviewResponse struct {
	// ID はレビューの一意識別子。
	ID string `json:"id"`
	// UserID はレビューを書いたユーザーID。
	UserID string `json:"user_id"`
	// BookID は対象書籍のID。
	BookID string `json:"book_id"`
	// Rating は評価値（1〜5）。
	Rating int64 `json:"rating"`
	// Body はレビュー本文。
	Body string `json:"body"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toReviewResponse はDB行をJSONレスポンスに変換する。
func toReviewResponse(r reviewdb.Review) reviewResponse {
	return reviewResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		BookID:    r.BookID,
		Rating:    r.Rating,
		Body:      r.Body,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}

// postResponse は投稿のJSONレスポンス構造。
type postResponse struct {
	// ID は投稿の一意識別子。
	ID string `json:"id"`
	// UserID は投稿したユーザーID。
	UserID string `json:"user_id"`
	// Body は投稿本文。
	Body string `json:"body"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toPostResponse はDB行をJSONレスポンスに変換する。
func toPostResponse(p reviewdb.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Body:      p.Body,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// commentResponse はコメントのJSONレスポンス構造。
type commentResponse struct {
	// ID はコメントの一意識別子。
	ID string `json:"id"`
	// PostID はコメント先の投稿ID。
	PostID string `json:"post_id"`
	// UserID はコメントしたユーザーID。
	UserID string `json:"user_id"`
	// Body はコメント本文。
	Body string `json:"body"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// handleCreateReview はレビュー投稿を処理するハンドラを返す。
// 保存成功後、review_createdアクションを通知サービスへemitする。
func (s *Server) handleCreateReview() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req createReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		reviewID := uuid.New().String()
		if err := s.queries.CreateReview(c.Request.Context(), reviewdb.CreateReviewParams{
			ID:     reviewID,
			UserID: userID,
			BookID: req.BookID,
			Rating: req.Rating,
			Body:   req.Body,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レビューの作成に失敗しました"})
			log.Printf("レビュー作成エラー: %v", err)
			return
		}

		// フォロワーへの通知を依頼する（ベストエフォート）
		s.emitAction(c, map[string]any{
			"action":    string(action.KindReviewCreated),
			"actor_id":  userID,
			"review_id": reviewID,
			"book_id":   req.BookID,
		})

		created, err := s.queries.GetReviewByID(c.Request.Context(), reviewID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "作成したレビューの取得に失敗しました"})
			log.Printf("レビュー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toReviewResponse(created))
	}
}

// handleListReviews は書籍ごとのレビュー一覧取得を処理するハンドラを返す。
func (s *Server) handleListReviews() gin.HandlerFunc {
	return func(c *gin.Context) {
		bookID := c.Query("book_id")
		if bookID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "book_idクエリパラメータが必要です"})
			return
		}

		reviews, err := s.queries.ListReviewsByBookID(c.Request.Context(), bookID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レビュー一覧の取得に失敗しました"})
			log.Printf("レビュー一覧取得エラー: %v", err)
			return
		}

		responses := make([]reviewResponse, 0, len(reviews))
		for _, r := range reviews {
			responses = append(responses, toReviewResponse(r))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleLikeReview はレビューへのいいねを処理するハンドラを返す。
// 保存成功後、review_likedアクションをレビューの作者宛にemitする。
// 自分のレビューへのいいねは成功するが、通知は作成されない。
func (s *Server) handleLikeReview() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		reviewID := c.Param("id")
		r, err := s.queries.GetReviewByID(c.Request.Context(), reviewID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "レビューが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レビューの取得に失敗しました"})
			log.Printf("レビュー取得エラー: %v", err)
			return
		}

		err = s.queries.CreateReviewLike(c.Request.Context(), reviewdb.CreateReviewLikeParams{
			ReviewID: reviewID,
			UserID:   userID,
		})
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "すでにいいねしています"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "いいねの登録に失敗しました"})
			log.Printf("レビューいいね登録エラー: %v", err)
			return
		}

		// レビューの作者への通知を依頼する（ベストエフォート）
		s.emitAction(c, map[string]any{
			"action":       string(action.KindReviewLiked),
			"actor_id":     userID,
			"recipient_id": r.UserID,
			"review_id":    reviewID,
		})

		c.JSON(http.StatusCreated, gin.H{"message": "いいねしました"})
	}
}

// handleCreateRating は評価登録を処理するハンドラを返す。
// 保存成功後、rating_createdアクションを通知サービスへemitする。
func (s *Server) handleCreateRating() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req createRatingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ratingID := uuid.New().String()
		err := s.queries.CreateRating(c.Request.Context(), reviewdb.CreateRatingParams{
			ID:     ratingID,
			UserID: userID,
			BookID: req.BookID,
			Rating: req.Rating,
		})
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "この書籍はすでに評価しています"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "評価の登録に失敗しました"})
			log.Printf("評価登録エラー: %v", err)
			return
		}

		// フォロワーへの通知を依頼する（ベストエフォート）
		s.emitAction(c, map[string]any{
			"action":   string(action.KindRatingCreated),
			"actor_id": userID,
			"book_id":  req.BookID,
		})

		c.JSON(http.StatusCreated, gin.H{"id": ratingID, "message": "評価を登録しました"})
	}
}

// handleCreatePost は投稿作成を処理するハンドラを返す。
// 保存成功後、post_createdアクションを通知サービスへemitする。
func (s *Server) handleCreatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req createPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		postID := uuid.New().String()
		if err := s.queries.CreatePost(c.Request.Context(), reviewdb.CreatePostParams{
			ID:     postID,
			UserID: userID,
			Body:   req.Body,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿の作成に失敗しました"})
			log.Printf("投稿作成エラー: %v", err)
			return
		}

		// フォロワーへの通知を依頼する（ベストエフォート）
		s.emitAction(c, map[string]any{
			"action":   string(action.KindPostCreated),
			"actor_id": userID,
			"post_id":  postID,
		})

		created, err := s.queries.GetPostByID(c.Request.Context(), postID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "作成した投稿の取得に失敗しました"})
			log.Printf("投稿取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toPostResponse(created))
	}
}

// handleListPosts は投稿一覧取得を処理するハンドラを返す。
func (s *Server) handleListPosts() gin.HandlerFunc {
	return func(c *gin.Context) {
		posts, err := s.queries.ListPosts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿一覧の取得に失敗しました"})
			log.Printf("投稿一覧取得エラー: %v", err)
			return
		}

		responses := make([]postResponse, 0, len(posts))
		for _, p := range posts {
			responses = append(responses, toPostResponse(p))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleGetPost は投稿詳細取得を処理するハンドラを返す。
func (s *Server) handleGetPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		postID := c.Param("id")

		p, err := s.queries.GetPostByID(c.Request.Context(), postID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "投稿が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿の取得に失敗しました"})
			log.Printf("投稿取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toPostResponse(p))
	}
}

// handleLikePost は投稿へのいいねを処理するハンドラを返す。
// 保存成功後、post_likedアクションを投稿の作者宛にemitする。
// 自分の投稿へのいいねは成功するが、通知は作成されない。
func (s *Server) handleLikePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		postID := c.Param("id")
		p, err := s.queries.GetPostByID(c.Request.Context(), postID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "投稿が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿の取得に失敗しました"})
			log.Printf("投稿取得エラー: %v", err)
			return
		}

		err = s.queries.CreatePostLike(c.Request.Context(), reviewdb.CreatePostLikeParams{
			PostID: postID,
			UserID: userID,
		})
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "すでにいいねしています"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "いいねの登録に失敗しました"})
			log.Printf("投稿いいね登録エラー: %v", err)
			return
		}

		// 投稿の作者への通知を依頼する（ベストエフォート）
		s.emitAction(c, map[string]any{
			"action":       string(action.KindPostLiked),
			"actor_id":     userID,
			"recipient_id": p.UserID,
			"post_id":      postID,
		})

		c.JSON(http.StatusCreated, gin.H{"message": "いいねしました"})
	}
}

// handleCommentPost は投稿へのコメントを処理するハンドラを返す。
// 保存成功後、post_commentedアクションを投稿の作者宛にemitする。
// 通知にはコメント本文の抜粋を載せる。
func (s *Server) handleCommentPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		postID := c.Param("id")
		p, err := s.queries.GetPostByID(c.Request.Context(), postID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "投稿が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿の取得に失敗しました"})
			log.Printf("投稿取得エラー: %v", err)
			return
		}

		var req createCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		commentID := uuid.New().String()
		if err := s.queries.CreatePostComment(c.Request.Context(), reviewdb.CreatePostCommentParams{
			ID:     commentID,
			PostID: postID,
			UserID: userID,
			Body:   req.Body,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コメントの登録に失敗しました"})
			log.Printf("コメント登録エラー: %v", err)
			return
		}

		// 投稿の作者への通知を依頼する（ベストエフォート）
		s.emitAction(c, map[string]any{
			"action":       string(action.KindPostCommented),
			"actor_id":     userID,
			"recipient_id": p.UserID,
			"post_id":      postID,
			"comment_id":   commentID,
			"comment":      excerpt(req.Body),
		})

		c.JSON(http.StatusCreated, gin.H{"id": commentID, "message": "コメントしました"})
	}
}

// handleListComments は投稿のコメント一覧取得を処理するハンドラを返す。
func (s *Server) handleListComments() gin.HandlerFunc {
	return func(c *gin.Context) {
		postID := c.Param("id")

		if _, err := s.queries.GetPostByID(c.Request.Context(), postID); errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "投稿が見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿の取得に失敗しました"})
			log.Printf("投稿取得エラー: %v", err)
			return
		}

		comments, err := s.queries.ListCommentsByPostID(c.Request.Context(), postID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "コメント一覧の取得に失敗しました"})
			log.Printf("コメント一覧取得エラー: %v", err)
			return
		}

		responses := make([]commentResponse, 0, len(comments))
		for _, pc := range comments {
			responses = append(responses, commentResponse{
				ID:        pc.ID,
				PostID:    pc.PostID,
				UserID:    pc.UserID,
				Body:      pc.Body,
				CreatedAt: pc.CreatedAt.Format(time.RFC3339),
			})
		}

		c.JSON(http.StatusOK, responses)
	}
}

// excerpt はコメント本文から通知用の抜粋を切り出す。
func excerpt(body string) string {
	runes := []rune(body)
	if len(runes) <= commentExcerptLen {
		return body
	}
	return string(runes[:commentExcerptLen])
}

// emitAction はドメインアクションの通知展開を通知サービスに依頼する。
// 依頼に失敗した場合はログに記録するが、呼び出し元にはエラーを返さない。
func (s *Server) emitAction(c *gin.Context, reqBody map[string]any) {
	ctx := httpclient.WithUserID(c.Request.Context(), middleware.GetUserID(c))
	if err := s.notificationClient.PostJSON(ctx, "/api/v1/internal/emit", reqBody, nil); err != nil {
		log.Printf("通知の依頼に失敗: action=%v: %v", reqBody["action"], err)
	}
}
