package user

import "embed"

// migrationsDir はマイグレーションファイルのディレクトリ。
const migrationsDir = "migrations"

// migrations はuserサービスのマイグレーションファイル。
//
//go:embed migrations/*.sql
var migrations embed.FS
