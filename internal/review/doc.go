// Package review はレビューサービスの内部実装を提供する。
//
// 書籍のレビュー・評価と、つぶやき形式の投稿・いいね・コメントを管理する。
// これらの操作が成功した後、対応するドメインアクションを通知サービスへ
// emitする。emitは常にローカルの書き込みが確定してから行い、失敗しても
// 元の操作の成否には影響しない。
package review
