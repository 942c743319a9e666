// Package database はSQLite（modernc.org/sqlite）の接続とマイグレーションを提供する。
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nao1215/review/pkg/migration"
)

// pragmas はファイルDBに適用する接続パラメータ。
const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Open はSQLiteデータベースを開き、fsysのdir配下のマイグレーションを適用する。
// pathが空または":memory:"の場合はインメモリDBを1接続で開く。
func Open(ctx context.Context, path string, fsys fs.FS, dir string) (*sql.DB, error) {
	inMemory := path == "" || path == ":memory:"

	dsn := path
	if inMemory {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	} else if !strings.Contains(path, "?") {
		dsn = path + "?" + pragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if inMemory {
		// インメモリDBは接続ごとに別物になるため1接続に固定する
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}
	if _, err := migration.Run(ctx, db, fsys, dir); err != nil {
		db.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	return db, nil
}

// IsUniqueViolation はerrが一意制約違反であればtrueを返す。
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	// 拡張リザルトコードが無効な接続では主コードとメッセージで判定する
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE constraint failed")
}
