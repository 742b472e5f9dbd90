// Package relation はフォロー関係サービスの内部実装を提供する。
//
// ユーザー間の有向フォローエッジを管理する。フォロー・フォロー解除の
// 操作と、フォロワー一覧・フォロー中一覧の参照を提供する。
// フォロー成立時にはフォローされたユーザーへの通知作成を
// 通知サービスに依頼する。
package relation
