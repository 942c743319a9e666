// Package gateway はAPI Gatewayの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
// Bearerトークンを検証し、アクセス制御表に従って許可したリクエストだけを
// 信頼済みヘッダー付きで各サービスへ転送する。
package gateway
