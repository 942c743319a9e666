// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// gatewayでのトークン検証とアクセス制御、下流サービスでの信頼済みヘッダーの
// 取り込み、パニックリカバリ、CORS設定など、全サービスで共通して使用する
// ミドルウェアを含む。
package middleware
