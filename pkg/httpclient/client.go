package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/review/pkg/identity"
)

// ErrNoIdentity はコンテキストに伝播すべきIdentityが無い場合のエラー。
// この場合リクエストは送信しない。
var ErrNoIdentity = errors.New("伝播する呼び出し元のIdentityがありません")

// defaultTimeout はサービス間通信のデフォルトタイムアウト。
const defaultTimeout = 30 * time.Second

// StatusError は接続先サービスが2xx以外を返した場合のエラー。
type StatusError struct {
	// StatusCode はレスポンスのステータスコード。
	StatusCode int
	// Body はレスポンスボディ。
	Body string
}

// Error はエラーメッセージを返す。
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPエラー: status=%d, body=%s", e.StatusCode, e.Body)
}

// Client はサービス間通信用のHTTPクライアント。
// リクエストのコンテキストにあるIdentityを信頼済みヘッダーとして付け直して送信する。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
	// internalSecret は内部サービスとして呼び出す場合の共有シークレット。
	internalSecret string
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithInternalSecret は内部サービスのIdentityを伝播するための共有シークレットを設定する。
// 設定しない場合、内部サービスのIdentityでの呼び出しはErrNoIdentityになる。
func WithInternalSecret(secret string) Option {
	return func(c *Client) {
		c.internalSecret = secret
	}
}

// WithTimeout はリクエストのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://user-service:8081"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

// GetJSON は指定パスにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.propagate(ctx, req.Header); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// propagate はコンテキストのIdentityを信頼済みヘッダーとして設定する。
func (c *Client) propagate(ctx context.Context, h http.Header) error {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return ErrNoIdentity
	}

	if id.IsInternal() {
		if c.internalSecret == "" {
			return ErrNoIdentity
		}
		h.Set(identity.HeaderInternalSecret, c.internalSecret)
		return nil
	}

	h.Set(identity.HeaderUserID, id.UserID)
	h.Set(identity.HeaderEmail, id.Email)
	h.Set(identity.HeaderRoles, strings.Join(identity.SplitRoles(id.Role), identity.RoleSeparator))
	h.Set(identity.HeaderFullName, id.FullName)
	return nil
}
