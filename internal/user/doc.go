// Package user はuserサービスの内部実装を提供する。
//
// ユーザー登録・ログイン（JWT発行）・メールアドレス確認と、
// 他サービス向けのユーザープロフィール参照APIを担当する。
// JWTを発行する唯一のサービスであり、検証はgatewayが行う。
// gateway経由のリクエストはHeaderAuthで呼び出し元を特定する。
package user
