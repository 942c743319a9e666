package identity

import (
	"context"
	"slices"
	"strings"
)

// Kind は認証主体の種類を表す。
type Kind int

const (
	// KindUser はgatewayでトークン検証を通過したエンドユーザー。
	KindUser Kind = iota + 1
	// KindInternal は共有シークレットで認証された内部サービス。
	KindInternal
)

// String は監査ログ向けの表記を返す。
func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

const (
	// InternalPrincipal は内部サービス呼び出しに割り当てる固定の主体名。
	InternalPrincipal = "internal-service"
	// RoleInternal は内部サービスだけが持つ権限。エンドユーザーのロールとは混ざらない。
	RoleInternal = "INTERNAL_SERVICE"
	// RoleUser は一般ユーザーのロール。
	RoleUser = "USER"
	// RoleAdmin は管理者のロール。
	RoleAdmin = "ADMIN"
)

// Identity はリクエストの呼び出し元を表す。
// フィルターが生成し、業務ロジックが参照する。永続化はしない。
type Identity struct {
	// UserID はユーザーの識別子。内部サービスの場合はInternalPrincipal。
	UserID string
	// Role は付与された単一のロール。
	Role string
	// Email はユーザーのメールアドレス。
	Email string
	// FullName はユーザーの氏名。
	FullName string
	// Kind はエンドユーザーか内部サービスかの区別。
	Kind Kind
}

// Internal は共有シークレットで認証された内部サービスのIdentityを返す。
func Internal() Identity {
	return Identity{
		UserID: InternalPrincipal,
		Role:   RoleInternal,
		Kind:   KindInternal,
	}
}

// IsInternal は内部サービスの主体であればtrueを返す。
func (id Identity) IsInternal() bool {
	return id.Kind == KindInternal
}

// HasRole は指定ロールのいずれかを保持していればtrueを返す。
// X-Rolesで連結された値が渡された場合も各要素を比較する。
func (id Identity) HasRole(roles ...string) bool {
	for _, r := range SplitRoles(id.Role) {
		if slices.Contains(roles, r) {
			return true
		}
	}
	return false
}

// SplitRoles はX-Rolesヘッダーの値をロールのスライスに分解する。
func SplitRoles(v string) []string {
	var roles []string
	for _, r := range strings.Split(v, RoleSeparator) {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// contextKey はコンテキストキーの型。
type contextKey struct{}

// NewContext はIdentityを格納したコンテキストを返す。
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext はコンテキストからIdentityを取り出す。
// 匿名リクエストの場合はfalseを返す。
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
