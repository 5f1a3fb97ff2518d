/*
Package statemachine wires the persistent store, the reverse indexes, the
Apply Engine, and the Query Surface into the single instance a raft node (or
a test) actually needs. pkg/fsm and pkg/query each take the store and the
reverse indexes as constructor arguments; this is the one place that builds
them over one shared pair and owns the construction order.
*/
package statemachine

import (
	"fmt"

	"github.com/cuemby/coordinator/pkg/fsm"
	"github.com/cuemby/coordinator/pkg/log"
	"github.com/cuemby/coordinator/pkg/query"
	"github.com/cuemby/coordinator/pkg/reverse"
	"github.com/cuemby/coordinator/pkg/storage"
)

var smLog = log.WithComponent("statemachine")

// StateMachine bundles one open store with the reverse indexes built on top
// of it, and exposes both the raft.FSM adapter and the read-only Query
// Surface over that shared state.
type StateMachine struct {
	store *storage.Store
	idx   *reverse.Indexes

	FSM   *fsm.CoordinatorFSM
	Query *query.Surface
}

// Open opens the bbolt store under dataDir and constructs the FSM and Query
// Surface over it. The reverse indexes start empty; a freshly opened store
// with existing forward-index data but no raft log replay behind it (e.g. a
// node restarting without having been caught up via Restore) will not have
// its reverse indexes repopulated by Open itself — that happens through
// raft's normal snapshot-restore or full log replay.
func Open(dataDir string) (*StateMachine, error) {
	store, err := storage.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	idx := reverse.New()
	sm := &StateMachine{
		store: store,
		idx:   idx,
		FSM:   fsm.NewCoordinatorFSM(store, idx),
		Query: query.New(store, idx),
	}
	smLog.Info().Str("data_dir", dataDir).Msg("state machine opened")
	return sm, nil
}

// Close closes the underlying store.
func (sm *StateMachine) Close() error {
	return sm.store.Close()
}

// Indexes returns the reverse indexes backing the FSM and Query Surface, for
// callers (coordinatord's metrics.Collector) that need to sample them
// without reaching into FSM/Query internals.
func (sm *StateMachine) Indexes() *reverse.Indexes {
	return sm.idx
}
