package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"pushbot/pkg/logx"
)

// Store holds the authoritative subscriber map and its durable
// snapshot. Mutations are serialized with the persistence write under
// a single write lock; reads take the read lock and copy.
type Store struct {
	log  logx.Logger
	path string

	mu   sync.RWMutex
	subs map[int64]Subscriber
}

func New(path string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{
		log:  log,
		path: path,
		subs: map[int64]Subscriber{},
	}
}

// Load reads the snapshot at startup. A missing file is not an error.
// Any other read or parse failure is logged and the store starts
// empty; the prior snapshot on disk is left untouched until the next
// successful save.
func (st *Store) Load() error {
	b, err := os.ReadFile(st.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			st.log.Info("no subscriber snapshot yet, starting empty", logx.String("path", st.path))
			return nil
		}
		st.log.Error("subscriber snapshot unreadable, starting empty (possible data loss)",
			logx.String("path", st.path), logx.Err(err))
		return nil
	}

	var raw map[string]Subscriber
	if err := json.Unmarshal(b, &raw); err != nil {
		st.log.Error("subscriber snapshot corrupt, starting empty (possible data loss)",
			logx.String("path", st.path), logx.Err(err))
		return nil
	}

	subs := make(map[int64]Subscriber, len(raw))
	for key, sub := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			st.log.Warn("skipping snapshot entry with bad key", logx.String("key", key))
			continue
		}
		if sub.Preferences == nil {
			sub.Preferences = map[string]bool{}
		}
		sub.RecipientID = id
		subs[id] = sub
	}

	st.mu.Lock()
	st.subs = subs
	st.mu.Unlock()

	st.log.Info("subscriber snapshot loaded", logx.Int("count", len(subs)))
	return nil
}

// saveLocked writes the snapshot atomically: marshal to a temp file in
// the same directory, then rename over the previous snapshot so a
// crash mid-write never corrupts it. Callers hold the write lock.
func (st *Store) saveLocked() error {
	raw := make(map[string]Subscriber, len(st.subs))
	for id, sub := range st.subs {
		raw[strconv.FormatInt(id, 10)] = sub
	}

	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return &IOError{Op: "save", Path: st.path, Err: err}
	}

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "save", Path: st.path, Err: err}
	}

	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return &IOError{Op: "save", Path: st.path, Err: err}
	}
	if err := os.Rename(tmp, st.path); err != nil {
		return &IOError{Op: "save", Path: st.path, Err: err}
	}
	return nil
}
