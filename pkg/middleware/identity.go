package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/nao1215/review/pkg/identity"
)

// SetIdentity はIdentityをリクエストのコンテキストに設定する。
// 以降のハンドラやサービス間呼び出しはc.Request.Context()から参照する。
func SetIdentity(c *gin.Context, id identity.Identity) {
	c.Request = c.Request.WithContext(identity.NewContext(c.Request.Context(), id))
}

// CurrentIdentity はリクエストのIdentityを返す。匿名の場合はfalseを返す。
func CurrentIdentity(c *gin.Context) (identity.Identity, bool) {
	return identity.FromContext(c.Request.Context())
}

// GetUserID はリクエストのユーザーIDを返す。匿名の場合は空文字列を返す。
func GetUserID(c *gin.Context) string {
	id, ok := CurrentIdentity(c)
	if !ok {
		return ""
	}
	return id.UserID
}
