// Package password はbcryptによるパスワードのハッシュ化と照合を提供する。
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost はハッシュ化に用いるbcryptのコスト。
const DefaultCost = 12

// ErrEmpty は空のパスワードをハッシュ化しようとした場合のエラー。
var ErrEmpty = errors.New("パスワードが空です")

// Hasher はコストを指定してパスワードをハッシュ化する。
type Hasher struct {
	// cost はbcryptのコスト。
	cost int
}

// NewHasher は指定コストのHasherを生成する。範囲外のコストはDefaultCostに置き換える。
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash はパスワードのbcryptハッシュを返す。
func (h *Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmpty
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	return string(b), nil
}

// Verify はパスワードがハッシュと一致すればtrueを返す。
func (h *Hasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
