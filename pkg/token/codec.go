package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config はトークンの署名設定。
type Config struct {
	// SecretKey はHMAC-SHA256の署名鍵。
	SecretKey string
	// Issuer は発行者を表すissクレームの値。
	Issuer string
	// Duration はトークンの有効期間。
	Duration time.Duration
}

// Validate は発行に必要な設定が揃っているかを検証する。
func (c Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("%w: 署名鍵が空です", ErrConfiguration)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: 有効期間は正の値が必要です", ErrConfiguration)
	}
	return nil
}

// Codec はトークンの発行と検証を行う。
// 生成後は読み取り専用であり、複数のリクエストから並行に利用できる。
type Codec struct {
	// secret は署名鍵。
	secret []byte
	// issuer は発行者。
	issuer string
	// duration はトークンの有効期間。
	duration time.Duration
	// now は現在時刻を返す関数。テストで差し替える。
	now func() time.Time
}

// Option はCodecの生成オプション。
type Option func(*Codec)

// WithClock は現在時刻の取得方法を差し替える。
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec は設定からCodecを生成する。
// 署名鍵が空でも生成はできるが、IssueとVerifyはErrConfigurationを返す。
func NewCodec(cfg Config, opts ...Option) *Codec {
	c := &Codec{
		secret:   []byte(cfg.SecretKey),
		issuer:   cfg.Issuer,
		duration: cfg.Duration,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue はクレームに発行者・発行日時・有効期限を設定して署名済みトークンを返す。
// 発行日時は秒単位に切り捨てる（トークン上の表現と一致させるため）。
func (c *Codec) Issue(claims Claims) (string, error) {
	if len(c.secret) == 0 {
		return "", fmt.Errorf("%w: 署名鍵が空です", ErrConfiguration)
	}
	if c.duration <= 0 {
		return "", fmt.Errorf("%w: 有効期間は正の値が必要です", ErrConfiguration)
	}

	now := c.now().Truncate(time.Second)
	claims.Issuer = c.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.duration))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークンの構造・署名・有効期限を検証し、クレームを返す。
// エラーはErrMalformed, ErrBadSignature, ErrExpired, ErrConfigurationのいずれかをラップする。
// 有効期限の時刻ちょうどは期限切れとして扱う。
func (c *Codec) Verify(raw string) (Claims, error) {
	if len(c.secret) == 0 {
		return Claims{}, fmt.Errorf("%w: 署名鍵が空です", ErrConfiguration)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}
	return claims, nil
}

// classify はjwtライブラリのエラーを検証失敗の分類に変換する。
// 分類できないエラーはErrMalformedとして扱う。
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		// 必須にしているのはexpのみなので、欠落は期限切れとして扱う
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
