package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

var ErrNotFound = errors.New("build record not found")

const DefaultMaxRecords = 500

// Store persists build records in a leveldb database keyed by record ID.
//
// In order to keep the storage requirements small, the oldest records are
// evicted once more than max records are stored. Records can be updated at
// any time with AppendState and SetResult, which lets the daemon report on
// builds that are still waiting in the Jenkins queue.
type Store struct {
	sync.Mutex
	db  *leveldb.DB
	eo  []*evict // eviction order, oldest first
	max int
}

// an element in Store.eo (eviction order)
type evict struct {
	Key  string
	Time time.Time
}

// Open opens (or creates) a persistent store at path.
func Open(path string, max int) (*Store, error) {
	s, err := storage.OpenFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open build store at %s: %w", path, err)
	}
	return open(s, max)
}

// NewInmem returns a store backed by memory, for tests and dry runs.
func NewInmem(max int) (*Store, error) {
	return open(storage.NewMemStorage(), max)
}

func open(s storage.Storage, max int) (*Store, error) {
	if max <= 0 {
		max = DefaultMaxRecords
	}
	db, err := leveldb.Open(s, nil)
	if err != nil {
		return nil, err
	}
	eo := make([]*evict, 0)
	iter := db.NewIterator(nil, nil)
	for iter.Next() {
		r := new(Record)
		if err := json.Unmarshal(iter.Value(), r); err != nil {
			iter.Release()
			return nil, fmt.Errorf("corrupt build record %s: %w", iter.Key(), err)
		}
		eo = append(eo, &evict{Key: r.ID, Time: r.Created})
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.Slice(eo, func(i, j int) bool { return eo[i].Time.Before(eo[j].Time) })
	return &Store{db: db, eo: eo, max: max}, nil
}

// Put persists a new record, evicting the oldest records when the store is
// full. Putting an existing ID replaces the record.
func (s *Store) Put(r *Record) error {
	s.Lock()
	defer s.Unlock()

	exists, err := s.db.Has([]byte(r.ID), nil)
	if err != nil {
		return err
	}
	if !exists {
		for keys := len(s.eo); keys >= s.max; keys-- {
			if err := s.db.Delete([]byte(s.eo[0].Key), &opt.WriteOptions{Sync: true}); err != nil {
				return err
			}
			s.eo = s.eo[1:]
		}
		s.eo = append(s.eo, &evict{Key: r.ID, Time: r.Created})
	}
	return s.put(r)
}

// Get looks up a record by ID.
func (s *Store) Get(id string) (*Record, error) {
	val, err := s.db.Get([]byte(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	r := new(Record)
	if err := json.Unmarshal(val, r); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns up to limit records, newest first. A limit of zero returns
// every record.
func (s *Store) List(limit int) ([]*Record, error) {
	var out []*Record
	iter := s.db.NewIterator(nil, nil)
	for iter.Next() {
		r := new(Record)
		if err := json.Unmarshal(iter.Value(), r); err != nil {
			iter.Release()
			return nil, err
		}
		out = append(out, r)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AppendState records a state transition for the record with id.
func (s *Store) AppendState(id string, state State, note string) error {
	return s.update(id, func(r *Record) {
		r.States = append(r.States, DatedState{
			State:   state,
			Entered: time.Now(),
			Note:    note,
		})
	})
}

// SetLocation stores the Jenkins queue item location of the record.
func (s *Store) SetLocation(id, location string) error {
	return s.update(id, func(r *Record) {
		r.Location = location
	})
}

// SetResult stores the build Jenkins assigned and moves the record to
// StateAssigned.
func (s *Store) SetResult(id string, res Result) error {
	return s.update(id, func(r *Record) {
		r.Result = &res
		r.States = append(r.States, DatedState{
			State:   StateAssigned,
			Entered: time.Now(),
		})
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) update(id string, fn func(r *Record)) error {
	s.Lock()
	defer s.Unlock()

	r, err := s.Get(id)
	if err != nil {
		return err
	}
	fn(r)
	return s.put(r)
}

// unexported; put value into the K-V store.
func (s *Store) put(r *Record) error {
	val, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(r.ID), val, &opt.WriteOptions{
		Sync: true,
	})
}
