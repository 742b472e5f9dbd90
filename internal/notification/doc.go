// Package notification は通知サービスの内部実装を提供する。
//
// ドメインアクションを通知レコードへ展開するファンアウトエンジンと、
// 通知の既読状態を管理するAPIを持つ。ブロードキャストのアクションは
// フォロー関係サービスからフォロワー一覧を取得して展開し、
// 単一受信者のアクションはペイロードで指定された相手に届ける。
// アクター自身への通知はどの経路でも作成しない。
package notification
