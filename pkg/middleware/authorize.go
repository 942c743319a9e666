package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/review/pkg/policy"
)

const (
	// msgUnauthenticated は認証が必要なルートに匿名でアクセスした場合の応答メッセージ。
	msgUnauthenticated = "認証が必要です"
	// msgForbidden はロールが不足している場合の応答メッセージ。
	msgForbidden = "この操作を行う権限がありません"
)

// Authorize はアクセス制御表に従ってリクエストを許可・拒否するミドルウェアを返す。
// GatewayAuthの後に適用すること。
func Authorize(table *policy.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		decision := table.Evaluate(c.Request.URL.Path, id, ok)

		switch decision {
		case policy.Allow:
			c.Next()
		case policy.Forbidden:
			log.Printf("[Authorize] 拒否: %s %s user_id=%q role=%q decision=%s", c.Request.Method, c.Request.URL.Path, id.UserID, id.Role, decision)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msgForbidden})
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthenticated})
		}
	}
}

// RequireIdentity は匿名リクエストを401で拒否するミドルウェアを返す。
// 下流サービスで認証必須のルートグループに適用する。
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthenticated})
			return
		}
		c.Next()
	}
}

// RequireInternal は内部サービス以外からのリクエストを拒否するミドルウェアを返す。
func RequireInternal() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthenticated})
			return
		}
		if !id.IsInternal() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msgForbidden})
			return
		}
		c.Next()
	}
}
