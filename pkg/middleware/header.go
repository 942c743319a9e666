package middleware

import (
	"crypto/subtle"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/review/pkg/identity"
)

// HeaderAuth は下流サービスで全リクエストに適用する認証ミドルウェアを返す。
//
// 次の順に判定する。
//  1. X-Internal-Secretが設定値と一致すれば内部サービスのIdentityを設定する。
//  2. X-User-IdとX-Rolesがあれば、その値をそのままIdentityとして設定する。
//  3. どちらも無ければ匿名のまま次に進める。
//
// 暗号的な検証は行わずヘッダーの値を信頼する。下流サービスにはgateway経由でしか
// 到達できないことをネットワーク構成で保証すること。
// 認証エラーは返さない。認証が必要かどうかはハンドラが判断する。
func HeaderAuth(internalSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secretMatches(c.GetHeader(identity.HeaderInternalSecret), internalSecret) {
			log.Printf("[HeaderAuth] 内部サービスとして認証: %s %s kind=%s", c.Request.Method, c.Request.URL.Path, identity.KindInternal)
			SetIdentity(c, identity.Internal())
			c.Next()
			return
		}

		userID := c.GetHeader(identity.HeaderUserID)
		role := c.GetHeader(identity.HeaderRoles)
		if userID != "" && role != "" {
			SetIdentity(c, identity.Identity{
				UserID:   userID,
				Role:     role,
				Email:    c.GetHeader(identity.HeaderEmail),
				FullName: c.GetHeader(identity.HeaderFullName),
				Kind:     identity.KindUser,
			})
		}

		log.Printf("[HeaderAuth] リクエスト開始: %s %s user_id=%q", c.Request.Method, c.Request.URL.Path, userID)
		c.Next()
	}
}

// secretMatches は共有シークレットを定数時間で比較する。
// 設定値が空の場合は常に不一致とする。
func secretMatches(presented, configured string) bool {
	if configured == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}
