package turndriver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Wundero/shiritori/internal/eventbus"
	"github.com/Wundero/shiritori/internal/rules"
	"github.com/Wundero/shiritori/internal/store"
)

// Supervisor spawns and restarts per-game Drivers. The Command API calls
// Spawn when a game starts; Supervisor also recovers any game left
// PLAYING across a process restart via Recover.
type Supervisor struct {
	engine *rules.Engine
	store  *store.Store
	bus    *eventbus.Bus
	log    *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewSupervisor returns a Supervisor wired to the given components.
func NewSupervisor(engine *rules.Engine, st *store.Store, bus *eventbus.Bus, log *slog.Logger) *Supervisor {
	return &Supervisor{
		engine:  engine,
		store:   st,
		bus:     bus,
		log:     log,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Spawn starts a driver for gameID if one isn't already tracked by this
// supervisor. It is safe to call redundantly (e.g. once per start
// request); a driver that loses the task_id claim race exits immediately
// without side effects.
func (s *Supervisor) Spawn(parent context.Context, gameID string) {
	s.mu.Lock()
	if _, exists := s.cancels[gameID]; exists {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancels[gameID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, gameID)
}

func (s *Supervisor) run(ctx context.Context, gameID string) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, gameID)
		s.mu.Unlock()
	}()

	for {
		err := Run(ctx, gameID, s.engine, s.store, s.bus, s.log)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if !rules.IsKind(err, rules.Retriable) && !rules.IsKind(err, rules.Fatal) {
			s.log.Error("turn driver exited", "game_id", gameID, "error", err)
			return
		}
		s.log.Warn("turn driver restarting after transient error", "game_id", gameID, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(crashRetryDelay):
		}
	}
}

// Stop cancels gameID's driver, if any. Called when a game is force-ended
// outside the normal tick loop (e.g. everyone leaves).
func (s *Supervisor) Stop(gameID string) {
	s.mu.Lock()
	cancel, ok := s.cancels[gameID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// Shutdown cancels every tracked driver and waits for them to exit.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Recover spawns a driver for every game the store reports as not yet
// FINISHED, for picking play back up after a process restart left drivers
// dead but games still PLAYING (their task_id columns point at task
// tokens no live process holds; a fresh claim always succeeds since the
// old owner can never release it).
func (s *Supervisor) Recover(ctx context.Context) error {
	ids, err := s.store.ListActiveGameIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.store.ForceClearTask(ctx, id); err != nil {
			return err
		}
		s.Spawn(ctx, id)
	}
	return nil
}
