// Package notification は通知サービスの内部実装を提供する。
//
// メール送信キューから通知メッセージを受信し、種別ごとのテンプレートで
// 件名と本文を組み立ててSESで送信する。内部サービスからの直接送信APIと
// 管理者向けの送信履歴APIも提供する。
package notification
