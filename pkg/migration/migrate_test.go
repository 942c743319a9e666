package migration

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

// openTestDB はテスト用のインメモリSQLiteを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	// インメモリDBは接続ごとに別物になるため1接続に固定する
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// testFS はテスト用のマイグレーションファイル群。
func testFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/000002_add_email.up.sql": {Data: []byte(`ALTER TABLE users ADD COLUMN email TEXT NOT NULL DEFAULT '';`)},
		"migrations/000001_create_users.up.sql": {Data: []byte(`CREATE TABLE users (id TEXT PRIMARY KEY);`)},
		"migrations/000001_create_users.down.sql": {Data: []byte(`DROP TABLE users;`)},
		"migrations/README.md":                    {Data: []byte(`ignored`)},
		"migrations/latest_users.up.sql":          {Data: []byte(`ignored`)},
	}
}

// TestRun はマイグレーションの適用を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("未適用のマイグレーションをバージョン順に適用すること", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		n, err := Run(context.Background(), db, testFS(), "migrations")
		if err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}
		if n != 2 {
			t.Errorf("適用数 = %d, want 2", n)
		}
		if _, err := db.Exec(`INSERT INTO users (id, email) VALUES ('u1', 'a@example.com')`); err != nil {
			t.Errorf("マイグレーション後のテーブルに挿入できない: %v", err)
		}
	})

	t.Run("2回目の実行では何も適用しないこと", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		if _, err := Run(context.Background(), db, testFS(), "migrations"); err != nil {
			t.Fatalf("1回目のRun()でエラーが発生: %v", err)
		}
		n, err := Run(context.Background(), db, testFS(), "migrations")
		if err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
		if n != 0 {
			t.Errorf("適用数 = %d, want 0", n)
		}
	})

	t.Run("失敗したマイグレーションはロールバックされ記録されないこと", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"m/000001_ok.up.sql":     {Data: []byte(`CREATE TABLE a (id INTEGER);`)},
			"m/000002_broken.up.sql": {Data: []byte(`CREATE TABLE;`)},
		}
		db := openTestDB(t)
		n, err := Run(context.Background(), db, fsys, "m")
		if err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
		if n != 1 {
			t.Errorf("適用数 = %d, want 1", n)
		}

		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
			t.Fatalf("schema_migrationsの参照に失敗: %v", err)
		}
		if count != 1 {
			t.Errorf("記録数 = %d, want 1", count)
		}
	})

	t.Run("ディレクトリが無い場合はエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		if _, err := Run(context.Background(), openTestDB(t), fstest.MapFS{}, "missing"); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestCollect はマイグレーションファイルの収集を検証する。
func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("up.sqlのみをバージョン順に返すこと", func(t *testing.T) {
		t.Parallel()

		files, err := Collect(testFS(), "migrations")
		if err != nil {
			t.Fatalf("Collect()でエラーが発生: %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("ファイル数 = %d, want 2", len(files))
		}
		if files[0].Version != 1 || files[0].Name != "create_users" {
			t.Errorf("files[0] = %+v", files[0])
		}
		if files[1].Version != 2 || files[1].path != "migrations/000002_add_email.up.sql" {
			t.Errorf("files[1] = %+v", files[1])
		}
	})

	t.Run("バージョンが重複している場合はエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"m/000001_a.up.sql": {Data: []byte(``)},
			"m/1_b.up.sql":      {Data: []byte(``)},
		}
		if _, err := Collect(fsys, "m"); err == nil {
			t.Fatal("Collect()がエラーを返すべきだが、nilが返った")
		}
	})
}
