// Package manifest records completed downloads in a bbolt database so a later
// fetch can tell whether a file changed.
package manifest

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"gitlab.com/tozd/go/errors"
	bbolt "go.etcd.io/bbolt"
)

var (
	bucketDownloads = []byte("downloads")
	bucketMeta      = []byte("meta")
	keyUpdated      = []byte("updated")
)

// Manifest stores one entry per downloaded file path.
type Manifest interface {
	Get(path string) (domain.ManifestEntry, bool, error)
	Put(e domain.ManifestEntry) error
	List() ([]domain.ManifestEntry, error)
	Stats() Stats
	Close() error
}

// Stats captures high-level counts for the manifest.
type Stats struct {
	Entries     uint64
	UpdatedUnix int64 // seconds since epoch
}

// boltManifest implements Manifest using bbolt.
type boltManifest struct {
	db *bbolt.DB
}

// Open opens (or creates) a manifest database at path and ensures buckets exist.
func Open(path string) (Manifest, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Errorf("opening manifest %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDownloads); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}
	return &boltManifest{db: db}, nil
}

func (m *boltManifest) Close() error { return m.db.Close() }

func (m *boltManifest) Get(path string) (domain.ManifestEntry, bool, error) {
	var (
		e     domain.ManifestEntry
		found bool
	)
	err := m.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketDownloads).Get([]byte(path))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &e)
	})
	if err != nil {
		return domain.ManifestEntry{}, false, errors.WithStack(err)
	}
	return e, found, nil
}

// Put stores e under its path and stamps the manifest's update time.
func (m *boltManifest) Put(e domain.ManifestEntry) error {
	if e.Path == "" {
		return errors.New("manifest entry has no path")
	}
	v, err := json.Marshal(e)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(m.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketDownloads).Put([]byte(e.Path), v); err != nil {
			return err
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(e.FetchedAt.Unix()))
		return tx.Bucket(bucketMeta).Put(keyUpdated, buf)
	}))
}

// List returns every entry ordered by path.
func (m *boltManifest) List() ([]domain.ManifestEntry, error) {
	var out []domain.ManifestEntry
	err := m.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDownloads).ForEach(func(_, v []byte) error {
			var e domain.ManifestEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return out, nil
}

func (m *boltManifest) Stats() Stats {
	st := Stats{}
	_ = m.db.View(func(tx *bbolt.Tx) error {
		st.Entries = uint64(tx.Bucket(bucketDownloads).Stats().KeyN)
		if v := tx.Bucket(bucketMeta).Get(keyUpdated); len(v) == 8 {
			st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return st
}

// nopManifest remembers nothing.
type nopManifest struct{}

// Nop returns a Manifest that stores nothing and reports every path as unseen.
func Nop() Manifest { return nopManifest{} }

func (nopManifest) Get(string) (domain.ManifestEntry, bool, error) {
	return domain.ManifestEntry{}, false, nil
}
func (nopManifest) Put(domain.ManifestEntry) error        { return nil }
func (nopManifest) List() ([]domain.ManifestEntry, error) { return nil, nil }
func (nopManifest) Stats() Stats                          { return Stats{} }
func (nopManifest) Close() error                          { return nil }
