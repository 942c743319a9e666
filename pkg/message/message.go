// Package message はサービス間でキューを介してやり取りする通知メッセージを定義する。
//
// userサービスやprojectサービスがメール送信キューに投入し、
// notificationサービスが受信してテンプレートに従ってメールを送信する。
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Type は通知の種類を表す。notificationサービスのテンプレートの種類と一致する。
type Type string

const (
	// TypeEmailVerification はユーザー登録時のメールアドレス確認を表す。
	TypeEmailVerification Type = "EMAIL_VERIFICATION"
	// TypeProjectInvitation はプロジェクトへの招待を表す。
	TypeProjectInvitation Type = "PROJECT_INVITATION"
)

// ErrInvalid は通知メッセージの必須項目が欠けている場合のエラー。
var ErrInvalid = errors.New("通知メッセージが不正です")

// Notification はメール送信キューに投入する通知メッセージ。
type Notification struct {
	// To は送信先メールアドレス。
	To string `json:"to"`
	// Type は通知の種類。
	Type Type `json:"type"`
	// Payload はテンプレートの ${key} に差し込む値。
	Payload map[string]string `json:"payload"`
}

// Validate は必須項目が揃っているかを検証する。
func (n Notification) Validate() error {
	if strings.TrimSpace(n.To) == "" {
		return fmt.Errorf("%w: 送信先がありません", ErrInvalid)
	}
	if n.Type == "" {
		return fmt.Errorf("%w: 種類がありません", ErrInvalid)
	}
	return nil
}

// Encode は通知メッセージを検証してJSON文字列にシリアライズする。
func Encode(n Notification) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("通知メッセージのシリアライズに失敗: %w", err)
	}
	return string(b), nil
}

// Decode はJSON文字列を通知メッセージにデシリアライズして検証する。
func Decode(body string) (Notification, error) {
	var n Notification
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		return Notification{}, fmt.Errorf("%w: デシリアライズに失敗: %v", ErrInvalid, err)
	}
	if err := n.Validate(); err != nil {
		return Notification{}, err
	}
	if n.Payload == nil {
		n.Payload = map[string]string{}
	}
	return n, nil
}
