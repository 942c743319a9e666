package project

import "embed"

// migrationsDir はマイグレーションファイルのディレクトリ。
const migrationsDir = "migrations"

// migrations はprojectサービスのマイグレーションファイル。
//
//go:embed migrations/*.sql
var migrations embed.FS
