package relation

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	relationdb "github.com/nao1215/bookfeed/internal/relation/db"
	"github.com/nao1215/bookfeed/pkg/httpclient"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// emitRecorder は通知サービスのモックが受け取ったemitリクエストを記録する。
type emitRecorder struct {
	mu       sync.Mutex
	requests []map[string]any
}

// add はemitリクエストを1件記録する。
func (r *emitRecorder) add(req map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

// all は記録された全リクエストを返す。
func (r *emitRecorder) all() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.requests...)
}

// setupTestServer はテスト用のフォロー関係サーバーをインメモリSQLiteで構築する。
// 通知サービスのモックサーバーも生成し、受信したemitリクエストを記録する。
func setupTestServer(t *testing.T) (*Server, *gin.Engine, *emitRecorder) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	// インメモリDBは接続ごとに独立するため単一接続に固定する
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	// 通知サービスのモックサーバーを作成する
	recorder := &emitRecorder{}
	notification := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		recorder.add(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"created":1}`))
	}))
	t.Cleanup(func() { notification.Close() })

	router := gin.New()
	s := &Server{
		router:             router,
		port:               "0",
		queries:            relationdb.New(sqlDB),
		db:                 sqlDB,
		notificationClient: httpclient.New(notification.URL),
	}

	// JWTミドルウェアの代わりにテスト用のユーザーID設定ミドルウェアを使用する
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	{
		follows := api.Group("/follows")
		{
			follows.POST("/:id", s.handleFollow())
			follows.DELETE("/:id", s.handleUnfollow())
		}
		users := api.Group("/users")
		{
			users.GET("/:id/followers", s.handleListFollowers())
			users.GET("/:id/following", s.handleListFollowing())
		}
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "relation"})
	})

	return s, router, recorder
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(router *gin.Engine, method, path, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(nil))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSONArray はレスポンスボディを文字列スライスにデコードするヘルパー関数。
func parseJSONArray(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	var result []string
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON配列のデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// contains は文字列スライスに指定の値が含まれるかを判定するヘルパー関数。
func contains(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

// TestHandleFollow はフォローハンドラのテスト。
func TestHandleFollow(t *testing.T) {
	t.Parallel()

	t.Run("正常にフォローでき両方向から参照できること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/follows/user-b", "user-a")
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}

		// フォローする側のfollowing一覧に含まれること
		w2 := doRequest(router, http.MethodGet, "/api/v1/users/user-a/following", "user-a")
		following := parseJSONArray(t, w2)
		if !contains(following, "user-b") {
			t.Errorf("following = %v, user-bが含まれるべき", following)
		}

		// フォローされる側のfollowers一覧に含まれること
		w3 := doRequest(router, http.MethodGet, "/api/v1/users/user-b/followers", "user-a")
		followers := parseJSONArray(t, w3)
		if !contains(followers, "user-a") {
			t.Errorf("followers = %v, user-aが含まれるべき", followers)
		}
	})

	t.Run("自分自身へのフォローは400エラーになること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/follows/user-a", "user-a")
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}

		// エッジが作成されていないことを確認する
		w2 := doRequest(router, http.MethodGet, "/api/v1/users/user-a/followers", "user-a")
		if followers := parseJSONArray(t, w2); len(followers) != 0 {
			t.Errorf("followers = %v, 空であるべき", followers)
		}
	})

	t.Run("二重フォローは409エラーになりエッジは1本のままであること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/follows/user-b", "user-a")
		if w.Code != http.StatusCreated {
			t.Fatalf("1回目のフォローに失敗: status=%d", w.Code)
		}

		w2 := doRequest(router, http.MethodPost, "/api/v1/follows/user-b", "user-a")
		if w2.Code != http.StatusConflict {
			t.Errorf("ステータスコード: got %d, want %d", w2.Code, http.StatusConflict)
		}

		w3 := doRequest(router, http.MethodGet, "/api/v1/users/user-b/followers", "user-a")
		followers := parseJSONArray(t, w3)
		if len(followers) != 1 {
			t.Errorf("フォロワー数: got %d, want 1", len(followers))
		}
	})

	t.Run("フォロー成功時に通知サービスへemitが依頼されること", func(t *testing.T) {
		t.Parallel()
		_, router, recorder := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/follows/user-b", "user-a")
		if w.Code != http.StatusCreated {
			t.Fatalf("フォローに失敗: status=%d", w.Code)
		}

		requests := recorder.all()
		if len(requests) != 1 {
			t.Fatalf("emitリクエスト数: got %d, want 1", len(requests))
		}
		if requests[0]["action"] != "user_followed" {
			t.Errorf("action = %v, want user_followed", requests[0]["action"])
		}
		if requests[0]["actor_id"] != "user-a" {
			t.Errorf("actor_id = %v, want user-a", requests[0]["actor_id"])
		}
		if requests[0]["recipient_id"] != "user-b" {
			t.Errorf("recipient_id = %v, want user-b", requests[0]["recipient_id"])
		}
	})

	t.Run("通知サービスが停止していてもフォローは成功すること", func(t *testing.T) {
		t.Parallel()
		s, router, _ := setupTestServer(t)

		// 接続不能なURLに差し替える
		s.notificationClient = httpclient.New("http://127.0.0.1:1")

		w := doRequest(router, http.MethodPost, "/api/v1/follows/user-b", "user-a")
		if w.Code != http.StatusCreated {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusCreated)
		}
	})

	t.Run("ユーザーIDが未設定の場合はUnauthorized", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/v1/follows/user-b", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestHandleUnfollow はフォロー解除ハンドラのテスト。
func TestHandleUnfollow(t *testing.T) {
	t.Parallel()

	t.Run("正常にフォロー解除でき両方向から参照できなくなること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		if w := doRequest(router, http.MethodPost, "/api/v1/follows/user-b", "user-a"); w.Code != http.StatusCreated {
			t.Fatalf("フォローに失敗: status=%d", w.Code)
		}

		w := doRequest(router, http.MethodDelete, "/api/v1/follows/user-b", "user-a")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		w2 := doRequest(router, http.MethodGet, "/api/v1/users/user-a/following", "user-a")
		if following := parseJSONArray(t, w2); len(following) != 0 {
			t.Errorf("following = %v, 空であるべき", following)
		}

		w3 := doRequest(router, http.MethodGet, "/api/v1/users/user-b/followers", "user-a")
		if followers := parseJSONArray(t, w3); len(followers) != 0 {
			t.Errorf("followers = %v, 空であるべき", followers)
		}
	})

	t.Run("フォローしていない相手の解除は404エラーになること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(router, http.MethodDelete, "/api/v1/follows/user-b", "user-a")
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("解除後に再フォローできること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		if w := doRequest(router, http.MethodPost, "/api/v1/follows/user-b", "user-a"); w.Code != http.StatusCreated {
			t.Fatalf("フォローに失敗: status=%d", w.Code)
		}
		if w := doRequest(router, http.MethodDelete, "/api/v1/follows/user-b", "user-a"); w.Code != http.StatusOK {
			t.Fatalf("フォロー解除に失敗: status=%d", w.Code)
		}

		w := doRequest(router, http.MethodPost, "/api/v1/follows/user-b", "user-a")
		if w.Code != http.StatusCreated {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusCreated)
		}
	})

	t.Run("ユーザーIDが未設定の場合はUnauthorized", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(router, http.MethodDelete, "/api/v1/follows/user-b", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestHandleListFollowers はフォロワー一覧取得ハンドラのテスト。
func TestHandleListFollowers(t *testing.T) {
	t.Parallel()

	t.Run("複数のフォロワーを取得できること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		for _, follower := range []string{"user-b", "user-c", "user-d"} {
			if w := doRequest(router, http.MethodPost, "/api/v1/follows/user-a", follower); w.Code != http.StatusCreated {
				t.Fatalf("%s のフォローに失敗: status=%d", follower, w.Code)
			}
		}

		w := doRequest(router, http.MethodGet, "/api/v1/users/user-a/followers", "user-a")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		followers := parseJSONArray(t, w)
		if len(followers) != 3 {
			t.Errorf("フォロワー数: got %d, want 3", len(followers))
		}
	})

	t.Run("フォロワーがいない場合は空配列を返すこと", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(router, http.MethodGet, "/api/v1/users/user-x/followers", "user-a")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		if followers := parseJSONArray(t, w); len(followers) != 0 {
			t.Errorf("followers = %v, 空であるべき", followers)
		}
	})
}

// TestHandleListFollowing はフォロー中一覧取得ハンドラのテスト。
func TestHandleListFollowing(t *testing.T) {
	t.Parallel()

	t.Run("フォロー中のユーザーを取得できること", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		for _, target := range []string{"user-b", "user-c"} {
			if w := doRequest(router, http.MethodPost, "/api/v1/follows/"+target, "user-a"); w.Code != http.StatusCreated {
				t.Fatalf("%s へのフォローに失敗: status=%d", target, w.Code)
			}
		}

		w := doRequest(router, http.MethodGet, "/api/v1/users/user-a/following", "user-a")
		following := parseJSONArray(t, w)
		if len(following) != 2 {
			t.Errorf("フォロー中の数: got %d, want 2", len(following))
		}
	})

	t.Run("誰もフォローしていない場合は空配列を返すこと", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doRequest(router, http.MethodGet, "/api/v1/users/user-a/following", "user-a")
		if following := parseJSONArray(t, w); len(following) != 0 {
			t.Errorf("following = %v, 空であるべき", following)
		}
	})
}
