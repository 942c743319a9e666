// Package project はprojectサービスの内部実装を提供する。
//
// プロジェクトの作成・一覧・詳細とメンバー管理を担当する。
// 詳細取得ではuserサービスの一括取得APIを呼び出してメンバー情報を補完する。
// このとき呼び出し元のIdentityをhttpclientで伝播するため、userサービス側でも
// 元のユーザーとして認証される。
package project
