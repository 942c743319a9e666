package notification

import "embed"

// migrationsDir はマイグレーションファイルのディレクトリ。
const migrationsDir = "migrations"

// migrations は通知サービスのマイグレーションファイル。テンプレートの初期データを含む。
//
//go:embed migrations/*.sql
var migrations embed.FS
