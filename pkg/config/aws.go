package config

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
)

// AWSSession はAWS_REGIONとAWS_ENDPOINTからAWSのセッションを生成する。
// 認証情報はSDK標準の方法（環境変数、共有設定ファイル、IAMロール）で解決する。
// AWS_ENDPOINTはLocalStack等のローカル環境で使用する。
func AWSSession() (*session.Session, error) {
	cfg := aws.NewConfig().WithRegion(GetEnvOr("AWS_REGION", "ap-northeast-1"))
	if endpoint := GetEnvOr("AWS_ENDPOINT", ""); endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("AWSセッションの生成に失敗: %w", err)
	}
	return sess, nil
}
