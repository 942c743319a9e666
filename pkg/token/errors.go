package token

import "errors"

// 検証失敗の分類。呼び出し側はerrors.Isで判定する。
// HTTPレスポンスでは区別せず、すべて同じ401として扱うこと。
var (
	// ErrMalformed はトークンの構造が不正であることを表す。
	ErrMalformed = errors.New("トークンの形式が不正です")
	// ErrBadSignature は署名が一致しないことを表す。
	ErrBadSignature = errors.New("トークンの署名が不正です")
	// ErrExpired は有効期限切れ、または有効期限クレームが無いことを表す。
	ErrExpired = errors.New("トークンの有効期限が切れています")
	// ErrConfiguration は署名鍵などの設定が不足していることを表す。
	ErrConfiguration = errors.New("トークンの設定が不正です")
)

// errMissingClaim は必須クレームの欠落を表す。検証結果ではErrMalformedに変換される。
var errMissingClaim = errors.New("必須クレームがありません")
