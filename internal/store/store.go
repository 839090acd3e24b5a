// Package store persists conversion job history in Badger.
package store

import (
	"context"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
)

// EventEmitter broadcasts store changes without depending on the SSE package.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// Sentinel errors.
var (
	ErrNotFound      = domainerrors.NotFoundf("job not found")
	ErrAlreadyExists = domainerrors.Conflict("job already exists")
)

// Options configures the database.
type Options struct {
	// Path is the database directory; ignored when InMemory is set.
	Path     string
	InMemory bool
}

// Store wraps a Badger database instance.
type Store struct {
	db           *badger.DB
	logger       *slog.Logger
	eventEmitter EventEmitter
}

// New opens the database. The emitter receives a JobUpdated value after every write.
func New(opts Options, logger *slog.Logger, emitter EventEmitter) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.Path)
		bopts.SyncWrites = true
		bopts.CompactL0OnClose = true
	}
	bopts.Logger = nil // Disable Badger's internal logging

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, domainerrors.IOf(err, "open job database")
	}

	if emitter == nil {
		emitter = NewNoopEmitter()
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("job database opened",
		slog.String("path", opts.Path),
		slog.Bool("in_memory", opts.InMemory),
	)

	return &Store{db: db, logger: logger, eventEmitter: emitter}, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	s.logger.Info("closing job database")
	return s.db.Close()
}

// Ping verifies the database is open and readable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}
