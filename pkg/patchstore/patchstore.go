// Package patchstore keeps patch-persistent script variables on disk, so
// they survive restarting the engine. Each patch is stored under a key,
// usually the script's file name.
package patchstore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zurustar/instrscript/pkg/logger"
	"github.com/zurustar/instrscript/pkg/vm"
)

var bucketPatches = []byte("patches")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("patch store is closed")

// DB is a bbolt-backed store of patch variables.
type DB struct {
	db  *bbolt.DB
	log *slog.Logger
	now func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *DB) {
		if log != nil {
			d.log = log
		}
	}
}

// Open opens or creates the store at path.
func Open(path string, opts ...Option) (*DB, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open patch store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPatches)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize patch store: %w", err)
	}

	d := &DB{db: db, log: logger.GetLogger(), now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	d.log.Debug("patch store opened", "path", path)
	return d, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	if d.db == nil {
		return ErrClosed
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// Load returns a PatchStore seeded with the variables saved under key. A
// key that was never saved gives an empty store.
func (d *DB) Load(key string) (*vm.PatchStore, error) {
	if d.db == nil {
		return nil, ErrClosed
	}
	store := vm.NewPatchStore()
	var data []byte
	err := d.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketPatches).Get([]byte(key)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		d.log.Debug("no saved patch variables", "key", key)
		return store, nil
	}

	rec, vals, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", key, err)
	}
	if skipped := store.Restore(vals); len(skipped) > 0 {
		d.log.Warn("saved patch variables skipped", "key", key, "vars", skipped)
	}
	d.log.Info("patch variables restored", "key", key, "vars", len(vals), "saved_by", rec.Patch, "saved", rec.Saved)
	return store, nil
}

// Save writes the patch-persistent variables of p under key.
func (d *DB) Save(key string, p *vm.Patch) error {
	if d.db == nil {
		return ErrClosed
	}
	vals := p.Store().Snapshot()
	data, err := encode(vals, p.ID.String(), d.now())
	if err != nil {
		return fmt.Errorf("patch %s: %w", key, err)
	}
	err = d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPatches).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save patch %s: %w", key, err)
	}
	d.log.Info("patch variables saved", "key", key, "vars", len(vals), "patch", p.ID.String())
	return nil
}

// Keys returns the saved patch keys in order.
func (d *DB) Keys() ([]string, error) {
	if d.db == nil {
		return nil, ErrClosed
	}
	var keys []string
	err := d.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPatches).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Delete forgets the variables saved under key.
func (d *DB) Delete(key string) error {
	if d.db == nil {
		return ErrClosed
	}
	return d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPatches).Delete([]byte(key))
	})
}
