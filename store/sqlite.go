package store

import (
	"database/sql"
	"errors"
	"fmt"

	// registers the "sqlite3" driver with database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/tinylora/classa/cryptocore"
)

// deviceRowID is the fixed primary key of the single-row session table.
// The schema keys on it rather than assuming a one-row table outright, so
// a future multi-device store can widen this to a real device identifier
// without a format break.
const deviceRowID = "self"

// SQLiteStore is the reference Store, backed by a single-row SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) a SQLite-backed session
// store at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite: %w", err)
	}

	const schema = `
	create table if not exists session (
		id            TEXT NOT NULL PRIMARY KEY,
		magic         INTEGER NOT NULL DEFAULT 0,
		dev_addr      INTEGER NOT NULL DEFAULT 0,
		dev_nonce     INTEGER NOT NULL DEFAULT 0,
		fcnt_up       INTEGER NOT NULL DEFAULT 0,
		rev11         INTEGER NOT NULL DEFAULT 0,
		app_s_key     BLOB,
		f_nwk_s_int_key BLOB,
		s_nwk_s_int_key BLOB,
		nwk_s_enc_key BLOB
	);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("store: creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load implements Store.
func (s *SQLiteStore) Load() (Session, error) {
	var sess Session
	var magic, rev11 int
	var appSKey, fNwkSIntKey, sNwkSIntKey, nwkSEncKey []byte

	row := s.db.QueryRow(
		`select magic, dev_addr, dev_nonce, fcnt_up, rev11, app_s_key, f_nwk_s_int_key, s_nwk_s_int_key, nwk_s_enc_key
		 from session where id = ?`, deviceRowID)
	err := row.Scan(&magic, &sess.DevAddr, &sess.DevNonce, &sess.FCntUp, &rev11,
		&appSKey, &fNwkSIntKey, &sNwkSIntKey, &nwkSEncKey)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("store: loading session: %w", err)
	}

	sess.Magic = magic != 0
	sess.Rev11 = rev11 != 0
	copyKey(&sess.AppSKey, appSKey)
	copyKey(&sess.FNwkSIntKey, fNwkSIntKey)
	copyKey(&sess.SNwkSIntKey, sNwkSIntKey)
	copyKey(&sess.NwkSEncKey, nwkSEncKey)
	return sess, nil
}

func copyKey(dst *cryptocore.Key, src []byte) {
	if len(src) == 16 {
		copy(dst[:], src)
	}
}

// ensureRow makes sure a row exists so subsequent updates always affect a
// row rather than silently no-op.
func (s *SQLiteStore) ensureRow() error {
	_, err := s.db.Exec(`insert or ignore into session (id) values (?)`, deviceRowID)
	return err
}

// SaveKeys implements Store.
func (s *SQLiteStore) SaveKeys(rev11 bool, keys cryptocore.SessionKeys) error {
	if err := s.ensureRow(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`update session set rev11 = ?, app_s_key = ?, f_nwk_s_int_key = ?, s_nwk_s_int_key = ?, nwk_s_enc_key = ? where id = ?`,
		boolToInt(rev11), keys.AppSKey[:], keys.FNwkSIntKey[:], keys.SNwkSIntKey[:], keys.NwkSEncKey[:], deviceRowID)
	return err
}

// SetDevAddr implements Store.
func (s *SQLiteStore) SetDevAddr(addr uint32) error {
	_, err := s.db.Exec(`update session set dev_addr = ? where id = ?`, addr, deviceRowID)
	return err
}

// ResetFCntUp implements Store.
func (s *SQLiteStore) ResetFCntUp() error {
	return s.SetFCntUp(0)
}

// SetFCntUp implements Store.
func (s *SQLiteStore) SetFCntUp(v uint32) error {
	if err := s.ensureRow(); err != nil {
		return err
	}
	_, err := s.db.Exec(`update session set fcnt_up = ? where id = ?`, v, deviceRowID)
	return err
}

// IncrementDevNonce implements Store.
func (s *SQLiteStore) IncrementDevNonce() (uint16, error) {
	if err := s.ensureRow(); err != nil {
		return 0, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	var cur uint16
	if err := tx.QueryRow(`select dev_nonce from session where id = ?`, deviceRowID).Scan(&cur); err != nil {
		return 0, err
	}
	next := cur + 1
	if _, err := tx.Exec(`update session set dev_nonce = ? where id = ?`, next, deviceRowID); err != nil {
		return 0, err
	}
	return next, tx.Commit()
}

// CommitMagic implements Store.
func (s *SQLiteStore) CommitMagic() error {
	_, err := s.db.Exec(`update session set magic = 1 where id = ?`, deviceRowID)
	return err
}

// Wipe implements Store.
func (s *SQLiteStore) Wipe() error {
	_, err := s.db.Exec(`delete from session where id = ?`, deviceRowID)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
