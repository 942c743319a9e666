package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/review/pkg/identity"
	"github.com/nao1215/review/pkg/token"
)

// msgAuthFailed はトークン検証失敗時の応答メッセージ。
// 期限切れと署名不正を区別させないため、失敗理由によらず同じ文言を返す。
const msgAuthFailed = "認証に失敗しました"

// Verifier はBearerトークンを検証してクレームを返す。token.Codecが実装する。
type Verifier interface {
	Verify(raw string) (token.Claims, error)
}

// GatewayAuth はgatewayで全リクエストに適用する認証ミドルウェアを返す。
//
// 外部から届いた信頼済みヘッダー（X-User-Id等）は常に取り除く。
// Bearerトークンが無ければ匿名のまま次に進め、判定はアクセス制御に任せる。
// トークンがあれば検証し、失敗した場合は401で打ち切る。成功した場合は
// クレームから信頼済みヘッダーを設定し、Identityをリクエストのコンテキストに載せる。
func GatewayAuth(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range identity.TrustedHeaders {
			c.Request.Header.Del(h)
		}

		raw, ok := bearerToken(c.GetHeader(identity.HeaderAuthorization))
		if !ok {
			c.Next()
			return
		}

		claims, err := verifySafely(v, raw)
		if err != nil {
			log.Printf("[GatewayAuth] トークン検証に失敗: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgAuthFailed})
			return
		}

		id := claims.Identity()
		setIdentityHeaders(c.Request.Header, id)
		SetIdentity(c, id)
		c.Next()
	}
}

// bearerToken はAuthorizationヘッダーから"Bearer <token>"形式のトークンを取り出す。
func bearerToken(header string) (string, bool) {
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// verifySafely は検証中のパニックも検証失敗として扱う。
func verifySafely(v Verifier, raw string) (claims token.Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("トークン検証中にパニックが発生: %v", r)
		}
	}()
	return v.Verify(raw)
}

// setIdentityHeaders はIdentityを信頼済みヘッダーとして上書き設定する。
func setIdentityHeaders(h http.Header, id identity.Identity) {
	h.Set(identity.HeaderUserID, id.UserID)
	h.Set(identity.HeaderRoles, id.Role)
	h.Set(identity.HeaderEmail, id.Email)
	h.Set(identity.HeaderFullName, id.FullName)
}
