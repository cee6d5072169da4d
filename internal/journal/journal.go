// Package journal implements the durable per-folder sync state store: file
// records, conflict records, selective-sync lists, chunked-upload
// resumption info, and the error blacklist.
//
// It is backed by SQLite (github.com/jmoiron/sqlx over
// internal/sqlitedb), grounded on the teacher's
// internal/client/sync/sync_journal.go and internal/db package, generalized
// from a single-table ETag/size/modtime cache into the full schema the spec
// requires.
//
// Concurrency: single-writer per sync run. Journal serializes writes with
// an internal mutex and additionally holds a cross-process file lock
// (github.com/gofrs/flock) for the duration of Open, so two sync runs
// against the same local tree — even from different processes — cannot
// interleave writes.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"

	"github.com/oc-sync/davsync/internal/pathutil"
	"github.com/oc-sync/davsync/internal/sqlitedb"
)

const schemaVersion = "1"

const schema = `
CREATE TABLE IF NOT EXISTS schema_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS file_records (
    path TEXT PRIMARY KEY,
    inode INTEGER NOT NULL,
    modtime INTEGER NOT NULL,
    size INTEGER NOT NULL,
    fileid TEXT NOT NULL,
    etag TEXT NOT NULL,
    checksum TEXT NOT NULL,
    type INTEGER NOT NULL,
    perms TEXT NOT NULL,
    remote_perms TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_file_records_etag ON file_records(etag);
CREATE INDEX IF NOT EXISTS idx_file_records_fileid ON file_records(fileid);

CREATE TABLE IF NOT EXISTS conflict_records (
    original_path TEXT PRIMARY KEY,
    conflict_path TEXT NOT NULL,
    base_fileid TEXT NOT NULL,
    base_etag TEXT NOT NULL,
    base_modtime INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS upload_info (
    path TEXT PRIMARY KEY,
    transfer_id TEXT NOT NULL,
    chunk_offset INTEGER NOT NULL,
    chunk_size INTEGER NOT NULL,
    modtime INTEGER NOT NULL,
    size INTEGER NOT NULL,
    error_count INTEGER NOT NULL,
    valid INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS selective_sync (
    kind INTEGER NOT NULL,
    path TEXT NOT NULL,
    PRIMARY KEY (kind, path)
);

CREATE TABLE IF NOT EXISTS error_blacklist (
    path TEXT PRIMARY KEY,
    category INTEGER NOT NULL,
    retry_count INTEGER NOT NULL,
    last_try INTEGER NOT NULL,
    ignore_until INTEGER NOT NULL,
    permanent INTEGER NOT NULL,
    message TEXT NOT NULL
);
`

// Journal manages the persistent state of a synced folder.
type Journal struct {
	db       *sqlx.DB
	dbPath   string
	lock     *flock.Flock
	lockPath string
	mu       sync.Mutex
}

// New creates a handle for a journal backed by dbPath. Open must be called
// before use.
func New(dbPath string) *Journal {
	return &Journal{
		dbPath:   dbPath,
		lockPath: dbPath + ".lock",
	}
}

// Open opens the underlying database, runs schema migrations, and acquires
// the cross-process single-writer lock.
func (j *Journal) Open() error {
	if j.db != nil {
		return fmt.Errorf("journal already open")
	}

	if err := pathutil.EnsureParent(j.dbPath); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	lock := flock.New(j.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock journal: %w", err)
	}
	if !locked {
		return fmt.Errorf("journal %s is locked by another sync run", j.dbPath)
	}
	j.lock = lock

	db, err := sqlitedb.Open(sqlitedb.WithPath(j.dbPath), sqlitedb.WithMaxOpenConns(1))
	if err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("open journal database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		_ = lock.Unlock()
		return fmt.Errorf("initialize journal schema: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		_ = lock.Unlock()
		return fmt.Errorf("migrate journal schema: %w", err)
	}

	j.db = db
	return nil
}

// migrate runs schema version migrations. There is only one schema version
// today; this records it and is the hook future migrations attach to.
func migrate(db *sqlx.DB) error {
	var current string
	err := db.Get(&current, "SELECT value FROM schema_meta WHERE key = 'version'")
	if errors.Is(err, sql.ErrNoRows) {
		_, err = db.Exec("INSERT INTO schema_meta (key, value) VALUES ('version', ?)", schemaVersion)
		return err
	}
	if err != nil {
		return err
	}
	if current != schemaVersion {
		slog.Warn("journal schema version mismatch", "have", current, "want", schemaVersion)
	}
	return nil
}

// Close closes the database connection and releases the cross-process lock.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db == nil {
		return fmt.Errorf("journal not open")
	}
	err := j.db.Close()
	j.db = nil
	if j.lock != nil {
		_ = j.lock.Unlock()
	}
	if err != nil {
		slog.Error("failed to close journal database", "error", err)
	}
	return err
}

// GetFileRecord retrieves the record for path, or nil if absent.
func (j *Journal) GetFileRecord(path string) (*FileRecord, error) {
	var rec FileRecord
	err := j.db.Get(&rec, "SELECT * FROM file_records WHERE path = ?", path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file record %s: %w", path, err)
	}
	return &rec, nil
}

// SetFileRecord inserts or replaces the record for rec.Path.
func (j *Journal) SetFileRecord(rec *FileRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	const q = `INSERT OR REPLACE INTO file_records
		(path, inode, modtime, size, fileid, etag, checksum, type, perms, remote_perms)
		VALUES (:path, :inode, :modtime, :size, :fileid, :etag, :checksum, :type, :perms, :remote_perms)`
	_, err := j.db.NamedExec(q, rec)
	if err != nil {
		return fmt.Errorf("set file record %s: %w", rec.Path, err)
	}
	return nil
}

// DeleteFileRecord removes the record for path, if any.
func (j *Journal) DeleteFileRecord(path string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec("DELETE FROM file_records WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("delete file record %s: %w", path, err)
	}
	return nil
}

// DeleteSubtree removes every record whose path is prefix or lies below it.
func (j *Journal) DeleteSubtree(prefix string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	like := strings.TrimSuffix(prefix, "/") + "/%"
	_, err := j.db.Exec("DELETE FROM file_records WHERE path = ? OR path LIKE ?", strings.TrimSuffix(prefix, "/"), like)
	if err != nil {
		return fmt.Errorf("delete subtree %s: %w", prefix, err)
	}
	return nil
}

// GetFilesBelow returns every record at or below prefix.
func (j *Journal) GetFilesBelow(prefix string) ([]*FileRecord, error) {
	like := strings.TrimSuffix(prefix, "/") + "/%"
	var recs []*FileRecord
	err := j.db.Select(&recs, "SELECT * FROM file_records WHERE path = ? OR path LIKE ? ORDER BY path", strings.TrimSuffix(prefix, "/"), like)
	if err != nil {
		return nil, fmt.Errorf("get files below %s: %w", prefix, err)
	}
	return recs, nil
}

// GetAllFileRecords returns the entire file_records table, keyed by path.
func (j *Journal) GetAllFileRecords() (map[string]*FileRecord, error) {
	var recs []*FileRecord
	if err := j.db.Select(&recs, "SELECT * FROM file_records"); err != nil {
		return nil, fmt.Errorf("get all file records: %w", err)
	}
	out := make(map[string]*FileRecord, len(recs))
	for _, r := range recs {
		out[r.Path] = r
	}
	return out, nil
}

// Count returns the number of file records.
func (j *Journal) Count() (int, error) {
	var count int
	if err := j.db.Get(&count, "SELECT COUNT(*) FROM file_records"); err != nil {
		return 0, fmt.Errorf("count file records: %w", err)
	}
	return count, nil
}

// ScheduleForRemoteDiscovery marks the etag of path and every ancestor
// directory as InvalidETag, forcing discovery to re-read them on the next
// run (spec §4.1, §3 invariant 3).
func (j *Journal) ScheduleForRemoteDiscovery(path string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin schedule-for-discovery tx: %w", err)
	}
	defer tx.Rollback()

	for dir := path; dir != "" && dir != "."; dir = parentDir(dir) {
		if _, err := tx.Exec("UPDATE file_records SET etag = ? WHERE path = ?", InvalidETag, dir); err != nil {
			return fmt.Errorf("invalidate etag for %s: %w", dir, err)
		}
		if dir == parentDir(dir) {
			break
		}
	}

	return tx.Commit()
}

func parentDir(path string) string {
	dir := filepath.ToSlash(filepath.Dir(path))
	if dir == "." {
		return ""
	}
	return dir
}

// SetSelectiveSyncList replaces the full list of paths for kind.
func (j *Journal) SetSelectiveSyncList(kind SelectiveSyncKind, paths []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin selective-sync tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM selective_sync WHERE kind = ?", kind); err != nil {
		return fmt.Errorf("clear selective sync list: %w", err)
	}
	for _, p := range paths {
		if _, err := tx.Exec("INSERT OR IGNORE INTO selective_sync (kind, path) VALUES (?, ?)", kind, p); err != nil {
			return fmt.Errorf("insert selective sync entry %s: %w", p, err)
		}
	}
	return tx.Commit()
}

// GetSelectiveSyncList returns every path registered under kind.
func (j *Journal) GetSelectiveSyncList(kind SelectiveSyncKind) ([]string, error) {
	var paths []string
	err := j.db.Select(&paths, "SELECT path FROM selective_sync WHERE kind = ? ORDER BY path", kind)
	if err != nil {
		return nil, fmt.Errorf("get selective sync list: %w", err)
	}
	return paths, nil
}

// GetUploadInfo returns the resumable upload session for path, or nil.
func (j *Journal) GetUploadInfo(path string) (*UploadInfo, error) {
	var info UploadInfo
	err := j.db.Get(&info, "SELECT * FROM upload_info WHERE path = ?", path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get upload info %s: %w", path, err)
	}
	return &info, nil
}

// SetUploadInfo persists info.
func (j *Journal) SetUploadInfo(info *UploadInfo) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	const q = `INSERT OR REPLACE INTO upload_info
		(path, transfer_id, chunk_offset, chunk_size, modtime, size, error_count, valid)
		VALUES (:path, :transfer_id, :chunk_offset, :chunk_size, :modtime, :size, :error_count, :valid)`
	_, err := j.db.NamedExec(q, info)
	if err != nil {
		return fmt.Errorf("set upload info %s: %w", info.Path, err)
	}
	return nil
}

// ClearUploadInfo removes the resumable session for path (e.g. on
// successful finalize, or when the server's reset-list invalidates it).
func (j *Journal) ClearUploadInfo(path string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec("DELETE FROM upload_info WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("clear upload info %s: %w", path, err)
	}
	return nil
}

// GetConflictRecord returns the conflict record for originalPath, or nil.
func (j *Journal) GetConflictRecord(originalPath string) (*ConflictRecord, error) {
	var rec ConflictRecord
	err := j.db.Get(&rec, "SELECT * FROM conflict_records WHERE original_path = ?", originalPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conflict record %s: %w", originalPath, err)
	}
	return &rec, nil
}

// SetConflictRecord persists rec.
func (j *Journal) SetConflictRecord(rec *ConflictRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	const q = `INSERT OR REPLACE INTO conflict_records
		(original_path, conflict_path, base_fileid, base_etag, base_modtime)
		VALUES (:original_path, :conflict_path, :base_fileid, :base_etag, :base_modtime)`
	_, err := j.db.NamedExec(q, rec)
	if err != nil {
		return fmt.Errorf("set conflict record %s: %w", rec.OriginalPath, err)
	}
	return nil
}

// ListConflictRecords returns every outstanding conflict.
func (j *Journal) ListConflictRecords() ([]*ConflictRecord, error) {
	var recs []*ConflictRecord
	if err := j.db.Select(&recs, "SELECT * FROM conflict_records ORDER BY original_path"); err != nil {
		return nil, fmt.Errorf("list conflict records: %w", err)
	}
	return recs, nil
}

// DeleteConflictRecord removes the conflict entry for originalPath once
// resolved.
func (j *Journal) DeleteConflictRecord(originalPath string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec("DELETE FROM conflict_records WHERE original_path = ?", originalPath)
	if err != nil {
		return fmt.Errorf("delete conflict record %s: %w", originalPath, err)
	}
	return nil
}

// GetBlacklistEntry returns the blacklist row for path, or nil.
func (j *Journal) GetBlacklistEntry(path string) (*BlacklistEntry, error) {
	var entry BlacklistEntry
	err := j.db.Get(&entry, "SELECT * FROM error_blacklist WHERE path = ?", path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get blacklist entry %s: %w", path, err)
	}
	return &entry, nil
}

// SetBlacklistEntry persists entry.
func (j *Journal) SetBlacklistEntry(entry *BlacklistEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	const q = `INSERT OR REPLACE INTO error_blacklist
		(path, category, retry_count, last_try, ignore_until, permanent, message)
		VALUES (:path, :category, :retry_count, :last_try, :ignore_until, :permanent, :message)`
	_, err := j.db.NamedExec(q, entry)
	if err != nil {
		return fmt.Errorf("set blacklist entry %s: %w", entry.Path, err)
	}
	return nil
}

// DeleteBlacklistEntry removes the blacklist row for path.
func (j *Journal) DeleteBlacklistEntry(path string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec("DELETE FROM error_blacklist WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("delete blacklist entry %s: %w", path, err)
	}
	return nil
}

// ListBlacklistEntries returns every blacklist row.
func (j *Journal) ListBlacklistEntries() ([]*BlacklistEntry, error) {
	var entries []*BlacklistEntry
	if err := j.db.Select(&entries, "SELECT * FROM error_blacklist ORDER BY path"); err != nil {
		return nil, fmt.Errorf("list blacklist entries: %w", err)
	}
	return entries, nil
}

// WipeErrorBlacklist clears every non-permanent blacklist entry, leaving
// permanent ones (fatal per-file errors the user must resolve by hand)
// intact.
func (j *Journal) WipeErrorBlacklist() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec("DELETE FROM error_blacklist WHERE permanent = 0")
	if err != nil {
		return fmt.Errorf("wipe error blacklist: %w", err)
	}
	return nil
}

// Destroy closes the journal and renames the database file aside, keeping
// a timestamped backup instead of deleting synced-state history outright.
func (j *Journal) Destroy() error {
	if err := j.Close(); err != nil {
		return fmt.Errorf("failed to clear journal: %w", err)
	}
	timestamp := time.Now().Format("20060102150405")
	return renameAside(j.dbPath, timestamp)
}

// renameAside moves path to path.<timestamp>.bak, tolerating a missing
// source (a journal that was never opened has nothing to preserve).
func renameAside(path, timestamp string) error {
	backup := fmt.Sprintf("%s.%s.bak", path, timestamp)
	if err := os.Rename(path, backup); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("rename journal database aside: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Rename(path+suffix, backup+suffix)
	}
	return nil
}
