// Package action はドメインアクションと通知種類の対応を定義する分類器を提供する。
//
// レビュー投稿・評価登録・投稿作成などのコンテンツ作成系アクションは
// アクターの全フォロワーへのブロードキャスト通知に、いいね・コメント・
// フォローなどの対人アクションは単一受信者への通知に分類される。
// 分類は純粋な対応付けであり、副作用を持たない。
package action
