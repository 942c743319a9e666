package project

import (
	"context"
	"fmt"

	"github.com/nao1215/review/pkg/httpclient"
	"github.com/nao1215/review/pkg/response"
)

// UserProfile はuserサービスから取得するユーザー情報。
type UserProfile struct {
	// ID はユーザーID。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// FullName は氏名。
	FullName string `json:"fullName"`
}

// UserDirectory はユーザーIDからユーザー情報を引く。
type UserDirectory interface {
	// Profiles はidsのうち存在するユーザーの情報をIDをキーにして返す。
	Profiles(ctx context.Context, ids []string) (map[string]UserProfile, error)
}

// userServiceClient はuserサービスの一括取得APIを呼び出すUserDirectory。
// ctxのIdentityはhttpclientが信頼済みヘッダーとして伝播する。
type userServiceClient struct {
	// client はuserサービス向けのHTTPクライアント。
	client *httpclient.Client
}

// NewUserDirectory はuserサービスを参照するUserDirectoryを生成する。
func NewUserDirectory(client *httpclient.Client) UserDirectory {
	return &userServiceClient{client: client}
}

// Profiles はuserサービスの POST /user を呼び出す。
func (u *userServiceClient) Profiles(ctx context.Context, ids []string) (map[string]UserProfile, error) {
	var resp response.Body[[]UserProfile]
	if err := u.client.PostJSON(ctx, "/user", ids, &resp); err != nil {
		return nil, fmt.Errorf("ユーザー情報の取得に失敗: %w", err)
	}

	profiles := make(map[string]UserProfile, len(resp.Data))
	for _, p := range resp.Data {
		profiles[p.ID] = p
	}
	return profiles, nil
}
