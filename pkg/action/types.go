package action

import "fmt"

// Kind はドメインアクションの種類を表す。
// レビュー投稿やフォローなど、通知のトリガーとなる操作を識別する。
type Kind string

const (
	// KindReviewCreated はレビューが投稿されたことを表す。
	KindReviewCreated Kind = "review_created"
	// KindRatingCreated は評価が登録されたことを表す。
	KindRatingCreated Kind = "rating_created"
	// KindPostCreated は投稿が作成されたことを表す。
	KindPostCreated Kind = "post_created"
	// KindPostLiked は投稿にいいねされたことを表す。
	KindPostLiked Kind = "post_liked"
	// KindPostCommented は投稿にコメントされたことを表す。
	KindPostCommented Kind = "post_commented"
	// KindReviewLiked はレビューにいいねされたことを表す。
	KindReviewLiked Kind = "review_liked"
	// KindUserFollowed はユーザーがフォローされたことを表す。
	KindUserFollowed Kind = "user_followed"
)

// NotificationKind は通知の種類を表す。
// ドメインアクションから分類器によって導出され、通知レコードに保存される。
type NotificationKind string

const (
	// NotificationNewReview はフォロー中のユーザーがレビューを投稿したことを表す。
	NotificationNewReview NotificationKind = "new_review"
	// NotificationNewRating はフォロー中のユーザーが評価を登録したことを表す。
	NotificationNewRating NotificationKind = "new_rating"
	// NotificationNewPost はフォロー中のユーザーが投稿したことを表す。
	NotificationNewPost NotificationKind = "new_post"
	// NotificationLikePost は自分の投稿にいいねされたことを表す。
	NotificationLikePost NotificationKind = "like_post"
	// NotificationCommentPost は自分の投稿にコメントされたことを表す。
	NotificationCommentPost NotificationKind = "comment_post"
	// NotificationLikeReview は自分のレビューにいいねされたことを表す。
	NotificationLikeReview NotificationKind = "like_review"
	// NotificationFollow はフォローされたことを表す。
	NotificationFollow NotificationKind = "follow"
)

// Refs は通知が参照するエンティティのID群。
// 通知の種類ごとに必要なフィールドだけが設定される。
type Refs struct {
	// PostID は投稿のID。
	PostID string `json:"post_id,omitempty"`
	// ReviewID はレビューのID。
	ReviewID string `json:"review_id,omitempty"`
	// BookID は書籍のID。
	BookID string `json:"book_id,omitempty"`
	// CommentID はコメントのID。
	CommentID string `json:"comment_id,omitempty"`
	// Comment はコメント本文の抜粋。
	Comment string `json:"comment,omitempty"`
}

// Classification はドメインアクションの分類結果。
// どの種類の通知を、どの配信方式で作成するかを表す。
type Classification struct {
	// Kind は作成する通知の種類。
	Kind NotificationKind
	// Broadcast がtrueの場合はアクターの全フォロワーへ配信し、
	// falseの場合はペイロードで指定された単一の受信者へ配信する。
	Broadcast bool
}

// classifications はドメインアクションと通知分類の対応表。
// コンテンツ作成系のアクションはフォロワー全員へのブロードキャスト、
// いいね・コメント・フォローなど特定の相手に向けたアクションは単一受信者となる。
var classifications = map[Kind]Classification{
	KindReviewCreated: {Kind: NotificationNewReview, Broadcast: true},
	KindRatingCreated: {Kind: NotificationNewRating, Broadcast: true},
	KindPostCreated:   {Kind: NotificationNewPost, Broadcast: true},
	KindPostLiked:     {Kind: NotificationLikePost, Broadcast: false},
	KindPostCommented: {Kind: NotificationCommentPost, Broadcast: false},
	KindReviewLiked:   {Kind: NotificationLikeReview, Broadcast: false},
	KindUserFollowed:  {Kind: NotificationFollow, Broadcast: false},
}

// Classify はドメインアクションを通知の種類と配信方式に分類する。
// 未知のアクションの場合はfalseを返す。
func Classify(k Kind) (Classification, bool) {
	c, ok := classifications[k]
	return c, ok
}

// ValidateRefs はアクションの種類に応じて必須の参照IDが揃っているかを検証する。
// 単一受信者のアクションではrecipientIDが必須となる。
func ValidateRefs(k Kind, refs Refs, recipientID string) error {
	c, ok := classifications[k]
	if !ok {
		return fmt.Errorf("未知のアクション種類です: %s", k)
	}

	if !c.Broadcast && recipientID == "" {
		return fmt.Errorf("アクション %s には受信者IDが必要です", k)
	}

	switch k {
	case KindReviewCreated, KindReviewLiked:
		if refs.ReviewID == "" {
			return fmt.Errorf("アクション %s にはレビューIDが必要です", k)
		}
	case KindRatingCreated:
		if refs.BookID == "" {
			return fmt.Errorf("アクション %s には書籍IDが必要です", k)
		}
	case KindPostCreated, KindPostLiked, KindPostCommented:
		if refs.PostID == "" {
			return fmt.Errorf("アクション %s には投稿IDが必要です", k)
		}
	}

	// 同じ投稿への別コメントを別のアクションとして区別するため、
	// コメントには固有のIDが必要となる
	if k == KindPostCommented && refs.CommentID == "" {
		return fmt.Errorf("アクション %s にはコメントIDが必要です", k)
	}

	return nil
}
