package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-transcoder/internal/config"
	"github.com/listenupapp/listenup-transcoder/internal/logger"
	"github.com/listenupapp/listenup-transcoder/internal/sse"
	"github.com/listenupapp/listenup-transcoder/internal/store"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the job database. Jobs left running by a previous
// process are marked failed.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	db, err := store.New(store.Options{
		Path:     cfg.Storage.DataPath,
		InMemory: cfg.Storage.InMemory,
	}, log.Logger, sseHandle.Manager)
	if err != nil {
		return nil, err
	}

	n, err := db.MarkInterrupted(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if n > 0 {
		log.Warn("Marked interrupted jobs as failed", "count", n)
	}

	log.Info("Database initialized", "path", cfg.Storage.DataPath, "in_memory", cfg.Storage.InMemory)

	return &StoreHandle{Store: db}, nil
}
