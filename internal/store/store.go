// Package store persists sessions in an LMDB environment. Records are JSON
// values under session:<id> keys; aliases are small alias:<name> keys whose
// value is the session id they point at.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PowerDNS/lmdb-go/lmdb"

	"github.com/lair-ai/lair/internal/logging"
)

var (
	// ErrNotFound means no session matches the given id or alias.
	ErrNotFound = errors.New("session not found")
	// ErrAliasConflict means the alias already points at another session.
	ErrAliasConflict = errors.New("alias is already in use")
	// ErrAliasInvalid means the alias would be ambiguous with a session id.
	ErrAliasInvalid = errors.New("alias must not be empty or numeric")
	// ErrUnsupportedFormat means the stored record uses a serialization
	// version this release cannot read.
	ErrUnsupportedFormat = errors.New("unsupported session format")
)

const (
	sessionPrefix = "session:"
	aliasPrefix   = "alias:"

	// DefaultMapSize is used when the configured database size is zero.
	DefaultMapSize = 1 << 26
)

// Store is a session database backed by a single LMDB environment.
type Store struct {
	env *lmdb.Env
	dbi lmdb.DBI
}

// Open opens (creating if needed) the session database at path. mapSize
// bounds the memory map; growing it only affects this process's view, so
// all writers of a shared database should configure the same size.
func Open(path string, mapSize int64) (*Store, error) {
	path = expandHome(path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create session db dir: %w", err)
	}

	env, err := lmdb.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("create lmdb env: %w", err)
	}
	if mapSize <= 0 {
		mapSize = DefaultMapSize
	}
	if err := env.SetMapSize(mapSize); err != nil {
		env.Close()
		return nil, fmt.Errorf("set map size: %w", err)
	}
	if err := env.Open(path, 0, 0o644); err != nil {
		env.Close()
		return nil, fmt.Errorf("open session db: %w", err)
	}

	if info, err := env.Info(); err == nil {
		logging.Debug().Str("path", path).Int64("map_size", info.MapSize).
			Msg("session db opened")
	}

	s := &Store{env: env}
	err = env.Update(func(txn *lmdb.Txn) error {
		dbi, err := txn.OpenRoot(0)
		if err != nil {
			return err
		}
		s.dbi = dbi
		return nil
	})
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("open session db: %w", err)
	}
	return s, nil
}

// Close releases the LMDB environment.
func (s *Store) Close() error {
	return s.env.Close()
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func sessionKey(id int) []byte {
	return []byte(fmt.Sprintf("%s%08d", sessionPrefix, id))
}

func aliasKey(alias string) []byte {
	return []byte(aliasPrefix + alias)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// resolve turns a ref (numeric id or alias) into a session id. Numeric refs
// are looked up directly; anything else goes through the alias table.
func (s *Store) resolveTxn(txn *lmdb.Txn, ref string) (int, error) {
	if isNumeric(ref) {
		id, err := strconv.Atoi(ref)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return id, nil
	}
	val, err := txn.Get(s.dbi, aliasKey(ref))
	if lmdb.IsNotFound(err) {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(string(val))
	if err != nil {
		return 0, fmt.Errorf("corrupt alias %q: %w", ref, err)
	}
	return id, nil
}

func (s *Store) getTxn(txn *lmdb.Txn, id int) (*Record, error) {
	data, err := txn.Get(s.dbi, sessionKey(id))
	if lmdb.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

func (s *Store) putTxn(txn *lmdb.Txn, rec *Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return txn.Put(s.dbi, sessionKey(rec.ID), data, 0)
}

// nextIDTxn returns one past the highest stored session id.
func (s *Store) nextIDTxn(txn *lmdb.Txn) (int, error) {
	ids, err := s.idsTxn(txn)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 1, nil
	}
	return ids[len(ids)-1] + 1, nil
}

// idsTxn returns all stored session ids in ascending order. LMDB iterates
// keys lexicographically; the zero-padded key format makes that numeric.
func (s *Store) idsTxn(txn *lmdb.Txn) ([]int, error) {
	cur, err := txn.OpenCursor(s.dbi)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var ids []int
	prefix := []byte(sessionPrefix)
	k, _, err := cur.Get(prefix, nil, lmdb.SetRange)
	for err == nil {
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		id, convErr := strconv.Atoi(string(bytes.TrimPrefix(k, prefix)))
		if convErr == nil {
			ids = append(ids, id)
		}
		k, _, err = cur.Get(nil, nil, lmdb.Next)
	}
	if err != nil && !lmdb.IsNotFound(err) {
		return nil, err
	}
	return ids, nil
}

// Create assigns the record a fresh id, stamps its timestamps, and stores it.
func (s *Store) Create(rec *Record) (int, error) {
	err := s.env.Update(func(txn *lmdb.Txn) error {
		id, err := s.nextIDTxn(txn)
		if err != nil {
			return err
		}
		rec.ID = id
		now := time.Now().UTC()
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		return s.putTxn(txn, rec)
	})
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// Get loads a session by ref (numeric id or alias).
func (s *Store) Get(ref string) (*Record, error) {
	var rec *Record
	err := s.env.View(func(txn *lmdb.Txn) error {
		id, err := s.resolveTxn(txn, ref)
		if err != nil {
			return err
		}
		rec, err = s.getTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Put overwrites an existing session record. The original creation time is
// carried over; the update time is refreshed.
func (s *Store) Put(rec *Record) error {
	return s.env.Update(func(txn *lmdb.Txn) error {
		prev, err := s.getTxn(txn, rec.ID)
		if err != nil {
			return err
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = prev.CreatedAt
		}
		rec.UpdatedAt = time.Now().UTC()
		return s.putTxn(txn, rec)
	})
}

// List returns summaries of every stored session in id order.
func (s *Store) List() ([]Summary, error) {
	var out []Summary
	err := s.env.View(func(txn *lmdb.Txn) error {
		ids, err := s.idsTxn(txn)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rec, err := s.getTxn(txn, id)
			if err != nil {
				if errors.Is(err, ErrUnsupportedFormat) {
					logging.Warn().Int("session", id).Msg("skipping unreadable session record")
					continue
				}
				return err
			}
			out = append(out, rec.summary())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a session and its alias entry.
func (s *Store) Delete(ref string) error {
	return s.env.Update(func(txn *lmdb.Txn) error {
		id, err := s.resolveTxn(txn, ref)
		if err != nil {
			return err
		}
		rec, err := s.getTxn(txn, id)
		if err != nil {
			return err
		}
		if rec.Alias != "" {
			if err := txn.Del(s.dbi, aliasKey(rec.Alias), nil); err != nil && !lmdb.IsNotFound(err) {
				return err
			}
		}
		return txn.Del(s.dbi, sessionKey(id), nil)
	})
}

// DeleteAll removes every session and alias.
func (s *Store) DeleteAll() error {
	return s.env.Update(func(txn *lmdb.Txn) error {
		return txn.Drop(s.dbi, false)
	})
}

// PruneEmpty deletes sessions whose history is empty and returns how many
// were removed. Runs at startup so abandoned blank sessions don't pile up.
func (s *Store) PruneEmpty() (int, error) {
	pruned := 0
	err := s.env.Update(func(txn *lmdb.Txn) error {
		ids, err := s.idsTxn(txn)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rec, err := s.getTxn(txn, id)
			if err != nil {
				if errors.Is(err, ErrUnsupportedFormat) {
					continue
				}
				return err
			}
			if !rec.Empty() {
				continue
			}
			if rec.Alias != "" {
				if err := txn.Del(s.dbi, aliasKey(rec.Alias), nil); err != nil && !lmdb.IsNotFound(err) {
					return err
				}
			}
			if err := txn.Del(s.dbi, sessionKey(id), nil); err != nil {
				return err
			}
			pruned++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}

// SetAlias points alias at the given session, replacing the session's old
// alias. An empty alias clears it. Numeric aliases are rejected because
// they would shadow session ids.
func (s *Store) SetAlias(ref, alias string) error {
	if alias != "" && isNumeric(alias) {
		return fmt.Errorf("%w: %q", ErrAliasInvalid, alias)
	}
	return s.env.Update(func(txn *lmdb.Txn) error {
		id, err := s.resolveTxn(txn, ref)
		if err != nil {
			return err
		}
		rec, err := s.getTxn(txn, id)
		if err != nil {
			return err
		}

		if alias != "" {
			existing, err := txn.Get(s.dbi, aliasKey(alias))
			if err == nil && string(existing) != strconv.Itoa(id) {
				return fmt.Errorf("%w: %q", ErrAliasConflict, alias)
			}
			if err != nil && !lmdb.IsNotFound(err) {
				return err
			}
		}

		if rec.Alias != "" && rec.Alias != alias {
			if err := txn.Del(s.dbi, aliasKey(rec.Alias), nil); err != nil && !lmdb.IsNotFound(err) {
				return err
			}
		}
		if alias != "" {
			if err := txn.Put(s.dbi, aliasKey(alias), []byte(strconv.Itoa(id)), 0); err != nil {
				return err
			}
		}
		rec.Alias = alias
		return s.putTxn(txn, rec)
	})
}

// SetTitle updates a session's title.
func (s *Store) SetTitle(ref, title string) error {
	return s.env.Update(func(txn *lmdb.Txn) error {
		id, err := s.resolveTxn(txn, ref)
		if err != nil {
			return err
		}
		rec, err := s.getTxn(txn, id)
		if err != nil {
			return err
		}
		rec.Title = title
		return s.putTxn(txn, rec)
	})
}

// Next returns the id of the session after ref in id order, wrapping to the
// first session past the end.
func (s *Store) Next(ref string) (int, error) {
	return s.neighbor(ref, +1)
}

// Prev returns the id of the session before ref in id order, wrapping to the
// last session before the start.
func (s *Store) Prev(ref string) (int, error) {
	return s.neighbor(ref, -1)
}

func (s *Store) neighbor(ref string, dir int) (int, error) {
	var result int
	err := s.env.View(func(txn *lmdb.Txn) error {
		id, err := s.resolveTxn(txn, ref)
		if err != nil {
			return err
		}
		ids, err := s.idsTxn(txn)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		at := -1
		for i, v := range ids {
			if v == id {
				at = i
				break
			}
		}
		if at == -1 {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		result = ids[(at+dir+len(ids))%len(ids)]
		return nil
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}
