package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/trail/internal/activity"
	"github.com/hpungsan/trail/internal/errors"
)

const storeName = "search index"

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// validateEntry checks the required fields of an entry before it is written.
func validateEntry(e *activity.Entry) error {
	if e == nil {
		return errors.NewInvalidRequest("entry is required")
	}
	if strings.TrimSpace(e.Filename) == "" {
		return errors.NewInvalidRequest("entry filename is required")
	}
	if !activity.ValidDate(e.Date) {
		return errors.NewInvalidRequest(fmt.Sprintf("entry %s: invalid date %q (want YYYY-MM-DD)", e.Filename, e.Date))
	}
	return nil
}

// IndexEntry upserts e by filename and refreshes its full-text row in the
// same transaction.
func IndexEntry(db *sql.DB, e *activity.Entry) error {
	if err := validateEntry(e); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.NewIndexWriteFailed(storeName, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsert(tx, e, time.Now().UnixMilli()); err != nil {
		return errors.NewIndexWriteFailed(storeName, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewIndexWriteFailed(storeName, err)
	}
	return nil
}

// IndexEntries upserts a batch atomically: either every entry is visible
// afterwards or none of them are.
func IndexEntries(ctx context.Context, db *sql.DB, entries []*activity.Entry) error {
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return err
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewIndexWriteFailed(storeName, err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UnixMilli()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return errors.NewCancelled("bulk index")
		}
		if err := upsert(tx, e, now); err != nil {
			return errors.NewIndexWriteFailed(storeName, fmt.Errorf("%s: %w", e.Filename, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewIndexWriteFailed(storeName, err)
	}
	return nil
}

func upsert(tx execer, e *activity.Entry, now int64) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO entries (
			filename, timestamp, date, time, app_name, app_category,
			domain, activity, is_continuation, data, indexed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			timestamp = excluded.timestamp,
			date = excluded.date,
			time = excluded.time,
			app_name = excluded.app_name,
			app_category = excluded.app_category,
			domain = excluded.domain,
			activity = excluded.activity,
			is_continuation = excluded.is_continuation,
			data = excluded.data,
			indexed_at = excluded.indexed_at
	`,
		e.Filename, e.Timestamp, e.Date, e.Time, e.AppName(), e.AppCategory(),
		e.Domain(), e.Activity, boolToInt(e.IsContinuation), string(data), now,
	)
	if err != nil {
		return err
	}

	var id int64
	if err := tx.QueryRow("SELECT id FROM entries WHERE filename = ?", e.Filename).Scan(&id); err != nil {
		return err
	}
	return writeFTS(tx, id, e)
}

// writeFTS replaces the full-text row for entry id.
func writeFTS(tx execer, id int64, e *activity.Entry) error {
	if _, err := tx.Exec("DELETE FROM entries_fts WHERE rowid = ?", id); err != nil {
		return err
	}
	f := ftsFieldsOf(e)
	_, err := tx.Exec(`
		INSERT INTO entries_fts (
			rowid, filename, activity, summary, details, tags,
			app_name, window_title, url, domain, page_title,
			video_title, video_channel,
			ide_file, ide_path, ide_project, git_branch,
			terminal_cwd, terminal_command, ssh_host,
			comm_channel, comm_recipient, document_title
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append([]any{id}, f[:]...)...)
	return err
}

// ftsFieldsOf returns the searchable text of e in entries_fts column order.
func ftsFieldsOf(e *activity.Entry) [ftsColumnCount]any {
	var f [ftsColumnCount]any
	for i := range f {
		f[i] = ""
	}
	f[colFilename] = e.Filename
	f[colActivity] = e.Activity
	f[colSummary] = e.Summary
	f[colDetails] = e.Details
	f[colTags] = strings.Join(e.Tags, " ")
	if a := e.App; a != nil {
		f[colAppName] = a.Name
		f[colWindowTitle] = a.WindowTitle
	}
	if b := e.Browser; b != nil {
		f[colURL] = b.URL
		f[colDomain] = b.Domain
		f[colPageTitle] = b.PageTitle
	}
	if v := e.Video; v != nil {
		f[colVideoTitle] = v.Title
		f[colVideoChannel] = v.Channel
	}
	if d := e.IDE; d != nil {
		f[colIDEFile] = d.CurrentFile
		f[colIDEPath] = d.FilePath
		f[colIDEProject] = d.ProjectName
		f[colGitBranch] = d.GitBranch
	}
	if t := e.Terminal; t != nil {
		f[colTerminalCwd] = t.Cwd
		f[colTerminalCommand] = t.LastCommand
		f[colSSHHost] = t.SSHHost
	}
	if c := e.Communication; c != nil {
		f[colCommChannel] = c.Channel
		f[colCommRecipient] = c.Recipient
	}
	if d := e.Document; d != nil {
		f[colDocumentTitle] = d.DocumentTitle
	}
	return f
}

// GetEntry returns the entry stored under filename.
func GetEntry(db *sql.DB, filename string) (*activity.Entry, error) {
	var data string
	err := db.QueryRow("SELECT data FROM entries WHERE filename = ?", filename).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(filename)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return decodeEntry(data)
}

// HasEntry reports whether filename is indexed.
func HasEntry(db *sql.DB, filename string) (bool, error) {
	var exists int
	err := db.QueryRow("SELECT 1 FROM entries WHERE filename = ? LIMIT 1", filename).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// DeleteEntry removes an entry and its full-text row.
func DeleteEntry(db *sql.DB, filename string) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewIndexWriteFailed(storeName, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id int64
	err = tx.QueryRow("SELECT id FROM entries WHERE filename = ?", filename).Scan(&id)
	if err == sql.ErrNoRows {
		return errors.NewNotFound(filename)
	}
	if err != nil {
		return errors.NewInternal(err)
	}

	if _, err := tx.Exec("DELETE FROM entries_fts WHERE rowid = ?", id); err != nil {
		return errors.NewIndexWriteFailed(storeName, err)
	}
	if _, err := tx.Exec("DELETE FROM entries WHERE id = ?", id); err != nil {
		return errors.NewIndexWriteFailed(storeName, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewIndexWriteFailed(storeName, err)
	}
	return nil
}

// Clear removes every entry. Returns the number removed.
func Clear(db *sql.DB) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, errors.NewIndexWriteFailed(storeName, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec("DELETE FROM entries_fts"); err != nil {
		return 0, errors.NewIndexWriteFailed(storeName, err)
	}
	res, err := tx.Exec("DELETE FROM entries")
	if err != nil {
		return 0, errors.NewIndexWriteFailed(storeName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.NewIndexWriteFailed(storeName, err)
	}
	return n, nil
}

// RebuildIndex recomputes the full-text view from the stored entries.
// Returns the number of rows rebuilt.
func RebuildIndex(ctx context.Context, db *sql.DB) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewIndexWriteFailed(storeName, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries_fts"); err != nil {
		return 0, errors.NewIndexWriteFailed(storeName, err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT id, data FROM entries ORDER BY id")
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	type row struct {
		id    int64
		entry *activity.Entry
	}
	var all []row
	for rows.Next() {
		var (
			id   int64
			data string
		)
		if err := rows.Scan(&id, &data); err != nil {
			rows.Close()
			return 0, errors.NewInternal(err)
		}
		e, err := decodeEntry(data)
		if err != nil {
			rows.Close()
			return 0, err
		}
		all = append(all, row{id: id, entry: e})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, errors.NewInternal(err)
	}
	rows.Close()

	for _, r := range all {
		if err := writeFTS(tx, r.id, r.entry); err != nil {
			return 0, errors.NewIndexWriteFailed(storeName, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO entries_fts(entries_fts) VALUES('optimize')"); err != nil {
		return 0, errors.NewIndexWriteFailed(storeName, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.NewIndexWriteFailed(storeName, err)
	}
	return len(all), nil
}

// Recent returns the last n entries by timestamp, oldest first.
func Recent(ctx context.Context, db *sql.DB, n int) ([]activity.Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	return queryEntries(ctx, db, `
		SELECT data FROM (
			SELECT data, timestamp, id FROM entries
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		) ORDER BY timestamp ASC, id ASC
	`, n)
}

// All returns every entry in ascending timestamp order.
func All(ctx context.Context, db *sql.DB) ([]activity.Entry, error) {
	return queryEntries(ctx, db, "SELECT data FROM entries ORDER BY timestamp ASC, id ASC")
}

// queryEntries runs a query whose single column is the entry JSON blob.
func queryEntries(ctx context.Context, db *sql.DB, query string, args ...any) ([]activity.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	entries := []activity.Entry{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.NewInternal(err)
		}
		e, err := decodeEntry(data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

func decodeEntry(data string) (*activity.Entry, error) {
	var e activity.Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("decode entry: %w", err))
	}
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
