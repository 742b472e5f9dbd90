// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWT認証トークンの検証、パニックリカバリ、CORS設定、
// Prometheusメトリクス収集など、全サービスで共通して使用する
// ミドルウェアを含む。
package middleware
