// Package token は認証トークン（HS256署名のJWT）の発行と検証を提供する。
//
// userサービスがログイン時にトークンを発行し、gatewayがリクエストごとに
// 検証する。下流サービスはトークンを検証しない。
package token
