package protocol

import (
	"context"
	"fmt"
	"sync"
)

// ChangeStore persiste los cambios confirmados de un nodo.
// Save exige versiones correlativas: rec.Version == Count()+1.
type ChangeStore interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, uuid string) (Record, error)
	// Latest devuelve el último cambio guardado; false si no hay ninguno.
	Latest(ctx context.Context) (Record, bool, error)
	Count(ctx context.Context) (int, error)
	// List devuelve todos los cambios en orden de versión.
	List(ctx context.Context) ([]Record, error)
	Close() error
}

func checkVersion(rec Record, count int) error {
	if rec.Version != uint64(count)+1 {
		return fmt.Errorf("protocol: out of order version %d, store has %d record(s)", rec.Version, count)
	}
	if rec.UUID == "" {
		return fmt.Errorf("protocol: record without uuid")
	}
	return nil
}

// MemoryStore guarda los registros en memoria. Se pierde al reiniciar.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	byUUID  map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUUID: make(map[string]int)}
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkVersion(rec, len(s.records)); err != nil {
		return err
	}
	if _, dup := s.byUUID[rec.UUID]; dup {
		return fmt.Errorf("protocol: change %s already stored", rec.UUID)
	}
	rec.Cluster = rec.Cluster.Clone()
	s.byUUID[rec.UUID] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, uuid string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byUUID[uuid]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	rec := s.records[i]
	rec.Cluster = rec.Cluster.Clone()
	return rec, nil
}

func (s *MemoryStore) Latest(_ context.Context) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return Record{}, false, nil
	}
	rec := s.records[len(s.records)-1]
	rec.Cluster = rec.Cluster.Clone()
	return rec, true, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	for i, rec := range s.records {
		rec.Cluster = rec.Cluster.Clone()
		out[i] = rec
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
