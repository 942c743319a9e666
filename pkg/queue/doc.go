// Package queue はAmazon SQSを用いた通知メッセージの送受信を提供する。
//
// Publisherはメール送信キューへmessage.Notificationを投入し、
// Consumerはキューをロングポーリングしてハンドラに渡す。
// ハンドラが成功したメッセージと、デコードできないメッセージはキューから削除する。
// ハンドラが失敗したメッセージは削除せず、可視性タイムアウト後の再配信に任せる。
package queue
