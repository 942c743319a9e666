package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/review/pkg/identity"
)

// TestNewTable はアクセス制御表の生成を検証する。
func TestNewTable(t *testing.T) {
	t.Parallel()

	t.Run("不正なパターンはエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := NewTable(PublicRule("/api/[unclosed"))
		require.Error(t, err)
	})

	t.Run("ロールの無いロール制限ルールはエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := NewTable(RoleRule("/admin/**"))
		require.Error(t, err)
	})

	t.Run("不明なアクセスレベルはエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := NewTable(Rule{Pattern: "/x", Level: Level(99)})
		require.Error(t, err)
	})

	t.Run("標準の表が生成できること", func(t *testing.T) {
		t.Parallel()

		assert.NotPanics(t, func() { Default() })
	})
}

// TestEvaluate はパスとIdentityからの判定を検証する。
func TestEvaluate(t *testing.T) {
	t.Parallel()

	user := identity.Identity{UserID: "u-1", Role: identity.RoleUser, Kind: identity.KindUser}
	admin := identity.Identity{UserID: "u-2", Role: identity.RoleAdmin, Kind: identity.KindUser}
	guest := identity.Identity{UserID: "u-3", Role: "GUEST", Kind: identity.KindUser}
	table := Default()

	tests := []struct {
		name string
		path string
		id   identity.Identity
		ok   bool
		want Decision
	}{
		{name: "公開パスは匿名でも許可", path: "/user-service/api/auth/login", want: Allow},
		{name: "公開パスの深い階層も許可", path: "/project-service/api/project/verified-invitation/abc", want: Allow},
		{name: "ヘルスチェックは匿名でも許可", path: "/health", want: Allow},
		{name: "ロール制限パスに匿名は401", path: "/user-service/api/user/me", want: Unauthenticated},
		{name: "ロール制限パスにUSERは許可", path: "/user-service/api/user/me", id: user, ok: true, want: Allow},
		{name: "ロール制限パスに対象外ロールは403", path: "/project-service/api/project/1", id: guest, ok: true, want: Forbidden},
		{name: "ADMIN限定パスにUSERは403", path: "/notification-service/api/internal/send", id: user, ok: true, want: Forbidden},
		{name: "ADMIN限定パスにADMINは許可", path: "/notification-service/api/internal/send", id: admin, ok: true, want: Allow},
		{name: "未定義パスに匿名は401", path: "/unknown/path", want: Unauthenticated},
		{name: "未定義パスは認証済みなら許可", path: "/unknown/path", id: guest, ok: true, want: Allow},
		{name: "パストラバーサルで公開パスを装っても判定は正規化後", path: "/user-service/api/auth/../user/me", want: Unauthenticated},
		{name: "内部サービスはエンドユーザーのロールを持たない", path: "/user-service/api/user/me", id: identity.Internal(), ok: true, want: Forbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, table.Evaluate(tt.path, tt.id, tt.ok))
		})
	}
}

// TestEvaluateOrder はルールの評価順を検証する。
func TestEvaluateOrder(t *testing.T) {
	t.Parallel()

	t.Run("公開パスがロール制限より優先されること", func(t *testing.T) {
		t.Parallel()

		table, err := NewTable(
			RoleRule("/api/**", identity.RoleAdmin),
			PublicRule("/api/public/**"),
		)
		require.NoError(t, err)

		assert.Equal(t, Allow, table.Evaluate("/api/public/docs", identity.Identity{}, false))
		assert.Equal(t, Unauthenticated, table.Evaluate("/api/private", identity.Identity{}, false))
	})

	t.Run("ロール制限は最初に一致したルールで判定すること", func(t *testing.T) {
		t.Parallel()

		table, err := NewTable(
			RoleRule("/api/admin/**", identity.RoleAdmin),
			RoleRule("/api/**", identity.RoleUser, identity.RoleAdmin),
		)
		require.NoError(t, err)

		user := identity.Identity{UserID: "u", Role: identity.RoleUser, Kind: identity.KindUser}
		assert.Equal(t, Forbidden, table.Evaluate("/api/admin/users", user, true))
		assert.Equal(t, Allow, table.Evaluate("/api/projects", user, true))
	})
}

// TestDecisionString はログ向けの表記を検証する。
func TestDecisionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "forbidden", Forbidden.String())
	assert.Equal(t, "unknown", Decision(42).String())
}
