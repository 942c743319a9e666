// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 各サービスが他のサービスのAPIを呼び出す際に使用する。
// 送信前にリクエストのコンテキストからIdentityを取り出し、
// X-User-Id等の信頼済みヘッダーとして付け直すため、呼び出し先でも
// 元のユーザーとして認可判定が行われる。Identityが無い場合は送信しない。
package httpclient
