package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/review/pkg/identity"
)

// Claims はトークンに埋め込む認証情報。
// sub, iss, iat, exp は登録済みクレームとして扱う。
type Claims struct {
	jwt.RegisteredClaims
	// Role はユーザーに付与された単一のロール。
	Role string `json:"role"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// FullName はユーザーの氏名。
	FullName string `json:"fullname"`
}

// Validate は必須クレームを検証する。jwt.Parserが署名検証後に呼び出す。
func (c Claims) Validate() error {
	if c.Subject == "" {
		return fmt.Errorf("%w: sub", errMissingClaim)
	}
	if c.Role == "" {
		return fmt.Errorf("%w: role", errMissingClaim)
	}
	return nil
}

// Identity はクレームからエンドユーザーのIdentityを生成する。
func (c Claims) Identity() identity.Identity {
	return identity.Identity{
		UserID:   c.Subject,
		Role:     c.Role,
		Email:    c.Email,
		FullName: c.FullName,
		Kind:     identity.KindUser,
	}
}
