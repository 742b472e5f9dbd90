package notification

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// unreadCountTTL は未読数キャッシュの有効期間。
const unreadCountTTL = 5 * time.Minute

// UnreadCache はRedisを使った未読通知数のキャッシュ。
// Redisが構成されていない場合はnilとなり、全メソッドが何もせずに返る。
// 通知の作成・既読化・削除のたびに無効化される。
type UnreadCache struct {
	// client はRedisクライアント。
	client *redis.Client
}

// NewUnreadCacheFromEnv は環境変数REDIS_ADDRからキャッシュを構成する。
// REDIS_ADDRが未設定の場合はnilを返し、キャッシュは無効となる。
func NewUnreadCacheFromEnv() *UnreadCache {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return &UnreadCache{client: client}
}

// key はユーザーの未読数キャッシュのRedisキーを返す。
func (c *UnreadCache) key(userID string) string {
	return fmt.Sprintf("bookfeed:notification:unread:%s", userID)
}

// Get はキャッシュされた未読数を取得する。
// キャッシュが無効、またはキーが存在しない場合はfalseを返す。
func (c *UnreadCache) Get(ctx context.Context, userID string) (int64, bool) {
	if c == nil {
		return 0, false
	}

	val, err := c.client.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("未読数キャッシュの取得に失敗: %v", err)
		}
		return 0, false
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return count, true
}

// Set は未読数をキャッシュに保存する。失敗してもログに記録するだけ。
func (c *UnreadCache) Set(ctx context.Context, userID string, count int64) {
	if c == nil {
		return
	}

	if err := c.client.Set(ctx, c.key(userID), count, unreadCountTTL).Err(); err != nil {
		log.Printf("未読数キャッシュの保存に失敗: %v", err)
	}
}

// Invalidate はユーザーの未読数キャッシュを無効化する。
func (c *UnreadCache) Invalidate(ctx context.Context, userID string) {
	if c == nil {
		return
	}

	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		log.Printf("未読数キャッシュの無効化に失敗: %v", err)
	}
}
