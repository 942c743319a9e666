package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時は呼び出し元を監査ログに残し、詳細を伏せた500エラーを返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				kind, userID := "anonymous", ""
				if id, ok := CurrentIdentity(c); ok {
					kind, userID = id.Kind.String(), id.UserID
				}
				log.Printf("[PANIC] %s %s kind=%s user_id=%q: %v", c.Request.Method, c.Request.URL.Path, kind, userID, r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "内部サーバーエラーが発生しました",
				})
			}
		}()
		c.Next()
	}
}
