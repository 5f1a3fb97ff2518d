package fsm

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/raft"

	"github.com/cuemby/coordinator/pkg/log"
	"github.com/cuemby/coordinator/pkg/requests"
	"github.com/cuemby/coordinator/pkg/reverse"
	"github.com/cuemby/coordinator/pkg/snapshot"
	"github.com/cuemby/coordinator/pkg/storage"
)

var fsmLog = log.WithComponent("fsm")

// CoordinatorFSM adapts Engine to raft.FSM. The forward indexes live in the
// bbolt store (replicated to followers as ordinary log entries, never inside
// a raft snapshot); the reverse indexes are rebuilt from snapshots — that
// split between forward and reverse state is what pkg/snapshot encodes.
type CoordinatorFSM struct {
	engine *Engine
	idx    *reverse.Indexes
}

// NewCoordinatorFSM builds the raft.FSM adapter over an already-open store.
func NewCoordinatorFSM(store *storage.Store, idx *reverse.Indexes) *CoordinatorFSM {
	return &CoordinatorFSM{engine: NewEngine(store, idx), idx: idx}
}

// Apply decodes one raft log entry as a requests.Request and runs it through
// the Apply Engine. Returning an error here (rather than panicking) matches
// this module's convention of always propagating failures to the caller
// instead of crashing the process; hashicorp/raft surfaces it through the
// apply future.
func (f *CoordinatorFSM) Apply(l *raft.Log) interface{} {
	var req requests.Request
	if err := json.Unmarshal(l.Data, &req); err != nil {
		return fmt.Errorf("unmarshal request envelope: %w", err)
	}
	if err := f.engine.Apply(req); err != nil {
		fsmLog.Debug().Str("op", string(req.Op)).Err(err).Msg("apply failed")
		return err
	}
	return nil
}

// Snapshot captures the current reverse indexes via the Snapshot Codec
// (pkg/snapshot). The forward indexes in the bbolt store are not included;
// the raft snapshot carries only the in-memory reverse state.
func (f *CoordinatorFSM) Snapshot() (raft.FSMSnapshot, error) {
	return &coordinatorSnapshot{payload: snapshot.Build(f.idx)}, nil
}

// Restore replaces the reverse indexes wholesale from a previously persisted
// snapshot.
func (f *CoordinatorFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read reverse index snapshot: %w", err)
	}
	snap, err := snapshot.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode reverse index snapshot: %w", err)
	}
	snapshot.Install(f.idx, snap)
	fsmLog.Info().Msg("restored reverse indexes from snapshot")
	return nil
}

// coordinatorSnapshot implements raft.FSMSnapshot: encode to the sink, close
// or cancel depending on outcome, Release is a no-op since the payload is
// just a Go value.
type coordinatorSnapshot struct {
	payload snapshot.Snapshot
}

func (s *coordinatorSnapshot) Persist(sink raft.SnapshotSink) error {
	data, err := snapshot.Encode(s.payload)
	if err != nil {
		sink.Cancel()
		return fmt.Errorf("encode reverse index snapshot: %w", err)
	}
	if _, err := sink.Write(data); err != nil {
		sink.Cancel()
		return fmt.Errorf("persist reverse index snapshot: %w", err)
	}
	return sink.Close()
}

func (s *coordinatorSnapshot) Release() {}
