package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	notificationdb "github.com/nao1215/bookfeed/internal/notification/db"
	"github.com/nao1215/bookfeed/pkg/action"
	"github.com/nao1215/bookfeed/pkg/httpclient"
)

var (
	// fanoutCreated はファンアウトで作成された通知の総数。
	fanoutCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookfeed_fanout_notifications_created_total",
			Help: "ファンアウトで作成された通知の総数（通知種類別）",
		},
		[]string{"kind"},
	)
	// fanoutFailed はファンアウト中に失敗した通知書き込みの総数。
	fanoutFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookfeed_fanout_write_failures_total",
			Help: "ファンアウト中に失敗した通知書き込みの総数（通知種類別）",
		},
		[]string{"kind"},
	)
)

// ErrInvalidEmit はemitリクエストの内容が不正であることを表す。
var ErrInvalidEmit = errors.New("emitリクエストが不正です")

// Fanout はドメインアクションを通知レコードへ展開するエンジン。
// 配信先の解決、自己通知の抑止、重複通知の抑止を一手に担う。
type Fanout struct {
	// queries は通知テーブルへのクエリ実行オブジェクト。
	queries *notificationdb.Queries
	// relationClient はフォロー関係サービスへの通信クライアント。
	relationClient *httpclient.Client
	// cache は未読数キャッシュ。無効時はnil。
	cache *UnreadCache
}

// NewFanout は新しいファンアウトエンジンを生成する。
func NewFanout(queries *notificationdb.Queries, relationClient *httpclient.Client, cache *UnreadCache) *Fanout {
	return &Fanout{
		queries:        queries,
		relationClient: relationClient,
		cache:          cache,
	}
}

// EmitInput はファンアウトの入力。各サービスのemitリクエストに対応する。
type EmitInput struct {
	// Action はドメインアクションの種類。
	Action string `json:"action" binding:"required"`
	// ActorID はアクションを実行したユーザーID。
	ActorID string `json:"actor_id" binding:"required"`
	// RecipientID は単一受信者アクションでの通知先ユーザーID。
	RecipientID string `json:"recipient_id,omitempty"`
	// PostID は参照先の投稿ID。
	PostID string `json:"post_id,omitempty"`
	// ReviewID は参照先のレビューID。
	ReviewID string `json:"review_id,omitempty"`
	// BookID は参照先の書籍ID。
	BookID string `json:"book_id,omitempty"`
	// CommentID は参照先のコメントID。
	CommentID string `json:"comment_id,omitempty"`
	// Comment はコメント本文の抜粋。
	Comment string `json:"comment,omitempty"`
}

// refs はEmitInputから参照ID群を取り出す。
func (in EmitInput) refs() action.Refs {
	return action.Refs{
		PostID:    in.PostID,
		ReviewID:  in.ReviewID,
		BookID:    in.BookID,
		CommentID: in.CommentID,
		Comment:   in.Comment,
	}
}

// actionID はアクションを一意に識別するIDを導出する。
// 同じアクションのemitが再送されても同じIDになるため、
// (recipient_id, action_id)の一意制約と合わせて重複通知を抑止できる。
func (in EmitInput) actionID(kind action.Kind) string {
	ref := in.RecipientID
	switch kind {
	case action.KindReviewCreated, action.KindReviewLiked:
		ref = in.ReviewID
	case action.KindRatingCreated:
		ref = in.BookID
	case action.KindPostCreated, action.KindPostLiked:
		ref = in.PostID
	case action.KindPostCommented:
		// 同じ投稿への別コメントは別アクションなので、コメント自身のIDで区別する
		ref = in.CommentID
	}
	return fmt.Sprintf("%s:%s:%s", kind, in.ActorID, ref)
}

// Emit はドメインアクションを分類し、対象の受信者へ通知を作成する。
// 作成された通知数を返す。ブロードキャストのアクションはアクターの
// フォロワー全員が対象となり、フォロワーがいない場合は0件で正常終了する。
// アクター自身への通知はどの経路でも作成しない。
// 受信者ごとの書き込みは並行して行い、個々の失敗はログと失敗カウンタに
// 記録するだけで、他の受信者への書き込みは継続する。
func (f *Fanout) Emit(ctx context.Context, input EmitInput) (int64, error) {
	kind := action.Kind(input.Action)
	classification, ok := action.Classify(kind)
	if !ok {
		return 0, fmt.Errorf("%w: 未知のアクション種類です: %s", ErrInvalidEmit, input.Action)
	}

	refs := input.refs()
	if err := action.ValidateRefs(kind, refs, input.RecipientID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidEmit, err)
	}

	recipients, err := f.resolveRecipients(ctx, classification, input)
	if err != nil {
		return 0, err
	}

	actionID := input.actionID(kind)
	kindLabel := string(classification.Kind)

	var wg sync.WaitGroup
	var created atomic.Int64
	for _, recipient := range recipients {
		// 自己通知の抑止。アクター自身には通知しない
		if recipient == input.ActorID {
			continue
		}

		wg.Add(1)
		go func(recipient string) {
			defer wg.Done()

			n, err := f.queries.CreateNotification(ctx, notificationdb.CreateNotificationParams{
				ID:          uuid.New().String(),
				RecipientID: recipient,
				SenderID:    input.ActorID,
				Kind:        kindLabel,
				PostID:      refs.PostID,
				ReviewID:    refs.ReviewID,
				BookID:      refs.BookID,
				Comment:     refs.Comment,
				ActionID:    actionID,
			})
			if err != nil {
				fanoutFailed.WithLabelValues(kindLabel).Inc()
				log.Printf("通知の書き込みに失敗: recipient=%s, action=%s: %v", recipient, actionID, err)
				return
			}
			if n > 0 {
				created.Add(n)
				fanoutCreated.WithLabelValues(kindLabel).Inc()
				f.cache.Invalidate(ctx, recipient)
			}
		}(recipient)
	}
	wg.Wait()

	return created.Load(), nil
}

// resolveRecipients は配信方式に応じて通知の受信者一覧を解決する。
// ブロードキャストの場合はフォロー関係サービスからフォロワー一覧を取得する。
func (f *Fanout) resolveRecipients(ctx context.Context, c action.Classification, input EmitInput) ([]string, error) {
	if !c.Broadcast {
		return []string{input.RecipientID}, nil
	}

	var followerIDs []string
	path := fmt.Sprintf("/api/v1/users/%s/followers", input.ActorID)
	if err := f.relationClient.GetJSON(ctx, path, &followerIDs); err != nil {
		return nil, fmt.Errorf("フォロワー一覧の取得に失敗: %w", err)
	}
	return followerIDs, nil
}
