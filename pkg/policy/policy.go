// Package policy はgatewayで評価するルート単位のアクセス制御表を提供する。
//
// 公開パスを最初に評価し、次にロール制限パスを上から順に評価する。
// どちらにも一致しないパスは認証済みであることだけを要求する。
package policy

import (
	"fmt"
	"path"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nao1215/review/pkg/identity"
)

// Level はルートに要求するアクセスレベルを表す。
type Level int

const (
	// Authenticated は匿名でないIdentityを要求する。
	Authenticated Level = iota
	// Public は認証を要求しない。
	Public
	// RoleRestricted は指定ロールのいずれかを要求する。
	RoleRestricted
)

// Rule はパスパターンと要求するアクセスレベルの組。
type Rule struct {
	// Pattern はdoublestar形式のパスパターン（例: /user-service/api/auth/**）。
	Pattern string
	// Level は要求するアクセスレベル。
	Level Level
	// Roles はLevelがRoleRestrictedの場合に許可するロール。
	Roles []string
}

// PublicRule は認証不要のルールを生成する。
func PublicRule(pattern string) Rule {
	return Rule{Pattern: pattern, Level: Public}
}

// RoleRule は指定ロールのみ許可するルールを生成する。
func RoleRule(pattern string, roles ...string) Rule {
	return Rule{Pattern: pattern, Level: RoleRestricted, Roles: roles}
}

// Decision は評価結果。
type Decision int

const (
	// Allow は転送を許可する。
	Allow Decision = iota
	// Unauthenticated は認証が必要であることを表す（401）。
	Unauthenticated
	// Forbidden は認証済みだがロールが不足していることを表す（403）。
	Forbidden
)

// String はログ向けの表記を返す。
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Table はデプロイ単位で固定のアクセス制御表。
// 生成後は変更しないため、並行に評価してよい。
type Table struct {
	// public は公開パスのルール。
	public []Rule
	// restricted はロール制限パスのルール。定義順に評価する。
	restricted []Rule
}

// NewTable はルールからTableを生成する。不正なパターンが含まれる場合はエラーを返す。
func NewTable(rules ...Rule) (*Table, error) {
	t := &Table{}
	for _, r := range rules {
		if !doublestar.ValidatePattern(r.Pattern) {
			return nil, fmt.Errorf("不正なパスパターンです: %q", r.Pattern)
		}
		switch r.Level {
		case Public:
			t.public = append(t.public, r)
		case RoleRestricted:
			if len(r.Roles) == 0 {
				return nil, fmt.Errorf("ロールが指定されていません: %q", r.Pattern)
			}
			t.restricted = append(t.restricted, r)
		case Authenticated:
			// 既定の扱いと同じなので保持しない
		default:
			return nil, fmt.Errorf("不明なアクセスレベルです: %d", r.Level)
		}
	}
	return t, nil
}

// Evaluate はパスと呼び出し元のIdentityからアクセス可否を判定する。
// okがfalseの場合は匿名リクエストとして扱う。
func (t *Table) Evaluate(p string, id identity.Identity, ok bool) Decision {
	p = path.Clean("/" + p)

	for _, r := range t.public {
		if match(r.Pattern, p) {
			return Allow
		}
	}

	for _, r := range t.restricted {
		if !match(r.Pattern, p) {
			continue
		}
		if !ok {
			return Unauthenticated
		}
		if id.HasRole(r.Roles...) {
			return Allow
		}
		return Forbidden
	}

	if !ok {
		return Unauthenticated
	}
	return Allow
}

// match はパターンとパスを照合する。パターンは検証済みのためエラーは発生しない。
func match(pattern, p string) bool {
	matched, err := doublestar.Match(pattern, p)
	return err == nil && matched
}

// Default は本サービス群の標準のアクセス制御表を返す。
// 公開パスを明示し、それ以外はロールまたは認証を要求する。
func Default() *Table {
	t, err := NewTable(
		PublicRule("/health"),
		PublicRule("/user-service/api/auth/**"),
		PublicRule("/project-service/api/project/verified-invitation/**"),
		RoleRule("/user-service/api/user/**", identity.RoleUser, identity.RoleAdmin),
		RoleRule("/project-service/api/project/**", identity.RoleUser, identity.RoleAdmin),
		RoleRule("/notification-service/api/**", identity.RoleAdmin),
	)
	if err != nil {
		panic(fmt.Sprintf("標準のアクセス制御表が不正です: %v", err))
	}
	return t
}
