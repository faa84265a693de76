//go:build cgo_sqlite

// Build with: go build -tags "cgo_sqlite sqlite_fts5"

package db

import (
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

func dsn(path string) string {
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
}
