package protocol

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

var (
	bucketChanges = []byte("changes") // version (uint64 BE) -> Record JSON
	bucketIndex   = []byte("index")   // uuid -> version
)

// BoltStore guarda los cambios confirmados en un archivo BoltDB, uno por
// nodo. Sobrevive reinicios del proceso.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore abre (o crea) la base en path y asegura los buckets.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt store: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketChanges, bucketIndex} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt store: init buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func versionKey(v uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], v)
	return k[:]
}

// lastVersion vale como cantidad porque las versiones son correlativas.
func lastVersion(b *bolt.Bucket) uint64 {
	k, _ := b.Cursor().Last()
	if k == nil {
		return 0
	}
	return binary.BigEndian.Uint64(k)
}

func (s *BoltStore) Save(_ context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("bolt store: encode: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		changes, index := tx.Bucket(bucketChanges), tx.Bucket(bucketIndex)
		if err := checkVersion(rec, int(lastVersion(changes))); err != nil {
			return err
		}
		if index.Get([]byte(rec.UUID)) != nil {
			return fmt.Errorf("protocol: change %s already stored", rec.UUID)
		}
		if err := changes.Put(versionKey(rec.Version), raw); err != nil {
			return err
		}
		return index.Put([]byte(rec.UUID), versionKey(rec.Version))
	})
}

func (s *BoltStore) Get(_ context.Context, uuid string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketIndex).Get([]byte(uuid))
		if v == nil {
			return ErrRecordNotFound
		}
		raw := tx.Bucket(bucketChanges).Get(v)
		if raw == nil {
			return ErrRecordNotFound
		}
		return json.Unmarshal(raw, &rec)
	})
	return rec, err
}

func (s *BoltStore) Latest(_ context.Context) (Record, bool, error) {
	var (
		rec   Record
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		_, raw := tx.Bucket(bucketChanges).Cursor().Last()
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	return rec, found, err
}

func (s *BoltStore) Count(_ context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = int(lastVersion(tx.Bucket(bucketChanges)))
		return nil
	})
	return n, err
}

func (s *BoltStore) List(_ context.Context) ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChanges).ForEach(func(_, raw []byte) error {
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) Close() error { return s.db.Close() }
