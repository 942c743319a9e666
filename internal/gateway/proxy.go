package gateway

import (
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/review/pkg/identity"
)

// forwardedHeaders は転送先へそのまま渡すリクエストヘッダー。
// X-Internal-Secretは含めない。
var forwardedHeaders = []string{
	"Content-Type",
	"Accept",
	"Accept-Language",
	identity.HeaderUserID,
	identity.HeaderRoles,
	identity.HeaderEmail,
	identity.HeaderFullName,
}

// copiedResponseHeaders は転送先の応答から呼び出し元へ返すヘッダー。
var copiedResponseHeaders = []string{
	"Content-Type",
	"Content-Disposition",
	"Location",
}

// handleProxy はprefix配下へのリクエストをbaseURLのサービスへ転送するハンドラを返す。
// 転送先のパスはアクセス制御と同じく全体を正規化した値から作る。
// 正規化するとprefixの外に出るリクエストは400で拒否し、転送しない。
func (s *Server) handleProxy(service, prefix, baseURL string) gin.HandlerFunc {
	baseURL = strings.TrimRight(baseURL, "/")
	return func(c *gin.Context) {
		rest, ok := backendPath(prefix, c.Request.URL.Path)
		if !ok {
			log.Printf("[Gateway] サービスの外を指すパスを拒否: service=%s path=%q", service, c.Request.URL.Path)
			c.JSON(http.StatusBadRequest, gin.H{"error": "パスが不正です"})
			return
		}

		target := baseURL + rest
		if q := c.Request.URL.RawQuery; q != "" {
			target += "?" + q
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, c.Request.Body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロキシリクエストの作成に失敗しました"})
			return
		}
		req.ContentLength = c.Request.ContentLength
		for _, h := range forwardedHeaders {
			if v := c.Request.Header.Get(h); v != "" {
				req.Header.Set(h, v)
			}
		}

		resp, err := s.client.Do(req)
		if err != nil {
			log.Printf("[Gateway] プロキシエラー: service=%s path=%s: %v", service, req.URL.Path, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "内部サービスとの通信に失敗しました"})
			return
		}
		defer resp.Body.Close()

		for _, h := range copiedResponseHeaders {
			if v := resp.Header.Get(h); v != "" {
				c.Header(h, v)
			}
		}
		c.Status(resp.StatusCode)
		if _, err := io.Copy(c.Writer, resp.Body); err != nil {
			log.Printf("[Gateway] レスポンスの転送に失敗: service=%s path=%s: %v", service, req.URL.Path, err)
		}
	}
}

// backendPath は正規化したリクエストパスからprefixを取り除いた転送先のパスを返す。
// 正規化後のパスがprefix配下に無ければfalseを返す。
func backendPath(prefix, requestPath string) (string, bool) {
	rest, found := strings.CutPrefix(path.Clean("/"+requestPath), prefix)
	switch {
	case !found:
		return "", false
	case rest == "":
		return "/", true
	case !strings.HasPrefix(rest, "/"):
		return "", false
	}
	return rest, true
}
