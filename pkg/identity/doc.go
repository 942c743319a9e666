// Package identity はリクエスト単位の認証主体（Identity Context）と、
// gatewayから下流サービスへ伝播するHTTPヘッダーの契約を定義する。
//
// Identityはcontext.Contextに格納され、リクエストの処理が終わると破棄される。
// プロセス全体で共有される可変状態は持たない。
package identity
