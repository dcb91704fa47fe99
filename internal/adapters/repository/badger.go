package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/wheelsmith/internal/domain/model"
	"github.com/okian/wheelsmith/pkg/logger"
	"github.com/okian/wheelsmith/pkg/metrics"
)

const (
	jobKeyPrefix     = "job/"
	maxUpdateRetries = 3
	gcDiscardRatio   = 0.5
)

// BadgerStore persists jobs as JSON in badger. Retention is delegated to
// badger's per-entry TTL, set once a job reaches a terminal status; queued
// and processing jobs never expire.
type BadgerStore struct {
	db  *badger.DB
	cfg *storeConfig

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewBadgerStore opens (or creates) the database at path. With WithInMemory
// the path is ignored.
func NewBadgerStore(ctx context.Context, path string, opts ...Option) (*BadgerStore, error) {
	cfg := newStoreConfig(opts, defaultGCInterval)
	bopts := badger.DefaultOptions(path).WithLogger(badgerLogger{ctx: ctx, l: cfg.log.Named("badger")})
	if cfg.inMemory {
		bopts = bopts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	s := &BadgerStore{db: db, cfg: cfg, stop: make(chan struct{}), done: make(chan struct{})}
	if cfg.inMemory {
		close(s.done)
	} else {
		go s.gcLoop(ctx)
	}
	return s, nil
}

func (s *BadgerStore) gcLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			for s.db.RunValueLogGC(gcDiscardRatio) == nil {
			}
		}
	}
}

func jobKey(id string) []byte {
	return []byte(jobKeyPrefix + id)
}

func (s *BadgerStore) entry(job model.Job) (*badger.Entry, error) {
	val, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	e := badger.NewEntry(jobKey(job.ID), val)
	if s.cfg.retention > 0 && job.Status.Terminal() {
		e = e.WithTTL(s.cfg.retention)
	}
	return e, nil
}

func readJob(txn *badger.Txn, id string) (model.Job, error) {
	var j model.Job
	item, err := txn.Get(jobKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return j, ErrNotFound
	}
	if err != nil {
		return j, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &j)
	})
	return j, err
}

func (s *BadgerStore) Create(_ context.Context, job model.Job) error {
	start := time.Now()
	defer observe("create", start)

	now := s.cfg.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	e, err := s.entry(job)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(e.Key); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.SetEntry(e)
	})
}

func (s *BadgerStore) Update(ctx context.Context, id string, fn func(*model.Job)) (model.Job, error) {
	start := time.Now()
	defer observe("update", start)

	var out model.Job
	var err error
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			j, err := readJob(txn, id)
			if err != nil {
				return err
			}
			fn(&j)
			j.ID = id
			j.UpdatedAt = s.cfg.now()
			e, err := s.entry(j)
			if err != nil {
				return err
			}
			out = j
			return txn.SetEntry(e)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		s.cfg.log.Warn(ctx, "job update conflict, retrying", logger.String("job_id", id), logger.Int("attempt", attempt+1))
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.RecordErrorByComponent("repository", "not_found")
		}
		return model.Job{}, err
	}
	return out, nil
}

func (s *BadgerStore) Get(_ context.Context, id string) (model.Job, error) {
	start := time.Now()
	defer observe("get", start)

	var j model.Job
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		j, err = readJob(txn, id)
		return err
	})
	return j, err
}

func (s *BadgerStore) Delete(_ context.Context, id string) error {
	start := time.Now()
	defer observe("delete", start)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(jobKey(id))
	})
}

func (s *BadgerStore) Count(context.Context) int {
	n := 0
	_ = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(jobKeyPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// Close stops value log GC and closes the database.
func (s *BadgerStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return s.db.Close()
}

// badgerLogger routes badger's printf-style logging into our logger. Info
// and debug chatter are demoted to debug.
type badgerLogger struct {
	ctx context.Context
	l   logger.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(b.ctx, fmt.Sprintf(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(b.ctx, fmt.Sprintf(format, args...))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(b.ctx, fmt.Sprintf(format, args...))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(b.ctx, fmt.Sprintf(format, args...))
}
