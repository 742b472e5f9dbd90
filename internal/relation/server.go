package relation

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	relationdb "github.com/nao1215/bookfeed/internal/relation/db"
	"github.com/nao1215/bookfeed/pkg/action"
	"github.com/nao1215/bookfeed/pkg/httpclient"
	"github.com/nao1215/bookfeed/pkg/middleware"
)

// Server はフォロー関係サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はクエリ実行オブジェクト。
	queries *relationdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// notificationClient は通知サービスへの通信クライアント。
	notificationClient *httpclient.Client
}

// NewServer は新しいフォロー関係サーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", "/data/relation.db?_journal_mode=WAL&_busy_timeout=5000")
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
	router.Use(middleware.Metrics("relation"))

	s := &Server{
		router:             router,
		port:               port,
		queries:            relationdb.New(sqlDB),
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
		follows := api.Group("/follows")
		{
			// フォロー
			follows.POST("/:id", s.handleFollow())
			// フォロー解除
			follows.DELETE("/:id", s.handleUnfollow())
		}

		users := api.Group("/users")
		{
			// フォロワー一覧取得
			users.GET("/:id/followers", s.handleListFollowers())
			// フォロー中一覧取得
			users.GET("/:id/following", s.handleListFollowing())
		}
	}

	// メトリクス公開
	s.router.GET("/metrics", middleware.MetricsHandler())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "relation"})
	})
}

// isUniqueViolation はSQLiteの一意制約違反エラーかどうかを判定する。
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// handleFollow はフォローを処理するハンドラを返す。
// エッジ作成成功後、フォローされたユーザーへの通知を依頼する。
// 通知の失敗はログに記録するだけで、フォロー自体は成功として扱う。
func (s *Server) handleFollow() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := middleware.GetUserID(c)
		if actorID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		targetID := c.Param("id")
		if targetID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "フォロー対象のユーザーIDが必要です"})
			return
		}

		if actorID == targetID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "自分自身をフォローすることはできません"})
			return
		}

		err := s.queries.CreateFollowEdge(c.Request.Context(), relationdb.CreateFollowEdgeParams{
			FollowerID: actorID,
			FolloweeID: targetID,
		})
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "すでにフォローしています"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "フォローの登録に失敗しました"})
			log.Printf("フォローエッジ作成エラー: %v", err)
			return
		}

		// フォローされたユーザーへの通知を依頼する（ベストエフォート）
		s.emitFollowNotification(c, actorID, targetID)

		c.JSON(http.StatusCreated, gin.H{"message": "フォローしました"})
	}
}

// handleUnfollow はフォロー解除を処理するハンドラを返す。
func (s *Server) handleUnfollow() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := middleware.GetUserID(c)
		if actorID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		targetID := c.Param("id")
		if targetID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "フォロー解除対象のユーザーIDが必要です"})
			return
		}

		affected, err := s.queries.DeleteFollowEdge(c.Request.Context(), relationdb.DeleteFollowEdgeParams{
			FollowerID: actorID,
			FolloweeID: targetID,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "フォロー解除に失敗しました"})
			log.Printf("フォローエッジ削除エラー: %v", err)
			return
		}
		if affected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "フォローしていません"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "フォローを解除しました"})
	}
}

// handleListFollowers はフォロワー一覧取得を処理するハンドラを返す。
// レスポンスはユーザーIDの配列。順序に意味はない。
func (s *Server) handleListFollowers() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("id")

		ids, err := s.queries.ListFollowerIDs(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "フォロワー一覧の取得に失敗しました"})
			log.Printf("フォロワー一覧取得エラー: %v", err)
			return
		}

		if ids == nil {
			ids = []string{}
		}
		c.JSON(http.StatusOK, ids)
	}
}

// handleListFollowing はフォロー中一覧取得を処理するハンドラを返す。
func (s *Server) handleListFollowing() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("id")

		ids, err := s.queries.ListFollowingIDs(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "フォロー中一覧の取得に失敗しました"})
			log.Printf("フォロー中一覧取得エラー: %v", err)
			return
		}

		if ids == nil {
			ids = []string{}
		}
		c.JSON(http.StatusOK, ids)
	}
}

// emitFollowNotification はフォロー通知の作成を通知サービスに依頼する。
// 依頼に失敗した場合はログに記録するが、呼び出し元にはエラーを返さない。
func (s *Server) emitFollowNotification(c *gin.Context, actorID, targetID string) {
	reqBody := map[string]any{
		"action":       string(action.KindUserFollowed),
		"actor_id":     actorID,
		"recipient_id": targetID,
	}

	ctx := httpclient.WithUserID(c.Request.Context(), actorID)
	if err := s.notificationClient.PostJSON(ctx, "/api/v1/internal/emit", reqBody, nil); err != nil {
		log.Printf("フォロー通知の依頼に失敗: %v", err)
	}
}
