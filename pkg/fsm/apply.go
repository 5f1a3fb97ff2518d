// Package fsm implements the Apply Engine and the raft.FSM adapter over it:
// dispatching an update request envelope to its forward writes and
// reverse-index mutations inside one transaction.
package fsm

import (
	"fmt"
	"time"

	"github.com/cuemby/coordinator/pkg/cerrors"
	"github.com/cuemby/coordinator/pkg/ids"
	"github.com/cuemby/coordinator/pkg/lineage"
	"github.com/cuemby/coordinator/pkg/log"
	"github.com/cuemby/coordinator/pkg/metrics"
	"github.com/cuemby/coordinator/pkg/model"
	"github.com/cuemby/coordinator/pkg/requests"
	"github.com/cuemby/coordinator/pkg/reverse"
	"github.com/cuemby/coordinator/pkg/storage"
)

var applyLog = log.WithComponent("fsm.apply")

// Engine runs update requests against a Store and a set of in-memory reverse
// indexes. It holds no raft dependency itself; CoordinatorFSM (fsm.go) wraps
// it to satisfy raft.FSM.
type Engine struct {
	store *storage.Store
	idx   *reverse.Indexes
}

// NewEngine builds an Engine over an already-open store and index set.
func NewEngine(store *storage.Store, idx *reverse.Indexes) *Engine {
	return &Engine{store: store, idx: idx}
}

// Apply runs req to completion: opens a write transaction, performs the
// envelope bookkeeping and payload dispatch, applies reverse-index mutations,
// and commits. Every variant mutates reverse indexes before commit except
// RemoveExecutor, whose reverse mutations are deferred until after commit
// because they depend on rows the dispatch step deletes ("ordering
// exception").
func (e *Engine) Apply(req requests.Request) (err error) {
	timer := metrics.NewTimer()
	defer func() {
		metrics.RecordApply(string(req.Op), timer, err)
	}()

	txn, err := e.store.Begin(true)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			txn.Rollback()
		}
	}()

	if err := persistNewStateChanges(txn, req.NewStateChanges); err != nil {
		return err
	}
	if err := markStateChangesProcessed(txn, req.StateChangesProcessed); err != nil {
		return err
	}

	reverseFn, err := e.dispatch(txn, req)
	if err != nil {
		return err
	}

	envelopeReverse := func() {
		for _, sc := range req.NewStateChanges {
			e.idx.UnprocessedStateChanges.Insert(sc.ID)
		}
		for _, p := range req.StateChangesProcessed {
			e.idx.UnprocessedStateChanges.Remove(p.StateChangeID)
		}
	}

	if req.Op == requests.OpRemoveExecutor {
		if err := txn.Commit(); err != nil {
			return err
		}
		committed = true
		envelopeReverse()
		if reverseFn != nil {
			reverseFn()
		}
		applyLog.Debug().Str("op", string(req.Op)).Msg("applied request (post-commit reverse)")
		return nil
	}

	envelopeReverse()
	if reverseFn != nil {
		reverseFn()
	}

	if err := txn.Commit(); err != nil {
		return err
	}
	committed = true
	applyLog.Debug().Str("op", string(req.Op)).Msg("applied request")
	return nil
}

// persistNewStateChanges writes every newly produced state change row.
func persistNewStateChanges(txn *storage.Txn, changes []model.StateChange) error {
	for _, sc := range changes {
		if err := putEntity(txn, storage.StateChanges, sc.ID, sc); err != nil {
			return err
		}
	}
	return nil
}

// markStateChangesProcessed stamps ProcessedAt on every referenced state
// change row. A missing row is a hard failure.
func markStateChangesProcessed(txn *storage.Txn, processed []requests.StateChangeProcessed) error {
	for _, p := range processed {
		sc, ok, err := getEntity[model.StateChange](txn, storage.StateChanges, p.StateChangeID)
		if err != nil {
			return err
		}
		if !ok {
			return cerrors.NewDatabaseError("State change not found")
		}
		at := p.ProcessedAt
		sc.ProcessedAt = &at
		if err := putEntity(txn, storage.StateChanges, p.StateChangeID, sc); err != nil {
			return err
		}
	}
	return nil
}

// dispatch performs the Op-specific forward writes and returns a closure
// running the Op-specific reverse-index mutations, or nil if the variant has
// none. Some variants (UpdateContent, UpdateGarbageCollectionTask) mutate
// reverse indexes directly inside pkg/lineage rather than through the
// returned closure, since that logic is already transaction-scoped there.
func (e *Engine) dispatch(txn *storage.Txn, req requests.Request) (func(), error) {
	switch req.Op {

	case requests.OpCreateIndex:
		var p requests.CreateIndexPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		if err := putEntity(txn, storage.IndexTable, p.Index.ID, p.Index); err != nil {
			return nil, err
		}
		return func() {
			e.idx.IndexesByNamespace.Insert(p.Index.Namespace, p.Index.ID)
		}, nil

	case requests.OpCreateTasks:
		var p requests.CreateTasksPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		for _, task := range p.Tasks {
			if err := putEntity(txn, storage.Tasks, task.ID, task); err != nil {
				return nil, err
			}
		}
		return func() {
			for _, task := range p.Tasks {
				e.idx.UnassignedTasks.Insert(task.ID)
				e.idx.UnfinishedTasksByExtractor.Insert(task.ExtractorName, task.ID)
			}
		}, nil

	case requests.OpCreateOrAssignGarbageCollectionTask:
		var p requests.CreateOrAssignGarbageCollectionTaskPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		for _, task := range p.GCTasks {
			if err := putEntity(txn, storage.GarbageCollectionTasks, task.ID, task); err != nil {
				return nil, err
			}
		}
		return nil, nil

	case requests.OpUpdateGarbageCollectionTask:
		var p requests.UpdateGarbageCollectionTaskPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		p.GCTask.MarkFinished = p.MarkFinished
		if err := putEntity(txn, storage.GarbageCollectionTasks, p.GCTask.ID, p.GCTask); err != nil {
			return nil, err
		}
		if p.MarkFinished {
			if err := lineage.DeleteOnGCFinish(txn, e.idx, p.GCTask.ContentID, p.GCTask.ParentContentID); err != nil {
				return nil, err
			}
		}
		return nil, nil

	case requests.OpAssignTask:
		var p requests.AssignTaskPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		byExecutor := make(map[string][]string)
		for taskID, executorID := range p.Assignments {
			byExecutor[executorID] = append(byExecutor[executorID], taskID)
		}
		for executorID, taskIDs := range byExecutor {
			assignment, ok, err := getEntity[model.TaskAssignment](txn, storage.TaskAssignments, executorID)
			if err != nil {
				return nil, err
			}
			if !ok {
				assignment = model.TaskAssignment{ExecutorID: executorID, TaskIDs: map[string]struct{}{}}
			}
			if assignment.TaskIDs == nil {
				assignment.TaskIDs = map[string]struct{}{}
			}
			for _, taskID := range taskIDs {
				assignment.TaskIDs[taskID] = struct{}{}
			}
			if err := putEntity(txn, storage.TaskAssignments, executorID, assignment); err != nil {
				return nil, err
			}
		}
		return func() {
			for taskID, executorID := range p.Assignments {
				e.idx.UnassignedTasks.Remove(taskID)
				e.idx.ExecutorRunningTaskCount.Increment(executorID)
			}
		}, nil

	case requests.OpUpdateTask:
		var p requests.UpdateTaskPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		task := p.Task
		task.Finished = p.MarkFinished
		if err := putEntity(txn, storage.Tasks, task.ID, task); err != nil {
			return nil, err
		}
		for _, cm := range p.ContentMetadata {
			if _, err := lineage.WriteWithParentAttachment(txn, cm); err != nil {
				return nil, err
			}
		}
		if p.MarkFinished && p.ExecutorID != "" {
			assignment, ok, err := getEntity[model.TaskAssignment](txn, storage.TaskAssignments, p.ExecutorID)
			if err != nil {
				return nil, err
			}
			if ok {
				delete(assignment.TaskIDs, task.ID)
				if err := putEntity(txn, storage.TaskAssignments, p.ExecutorID, assignment); err != nil {
					return nil, err
				}
			}
		}
		return func() {
			if p.MarkFinished && p.ExecutorID != "" {
				e.idx.ExecutorRunningTaskCount.Decrement(p.ExecutorID)
				e.idx.UnassignedTasks.Remove(task.ID)
				e.idx.UnfinishedTasksByExtractor.Remove(task.ExtractorName, task.ID)
				taskLogger := log.WithTaskID(task.ID)
				taskLogger.Debug().Str("executor_id", p.ExecutorID).Msg("task finished, released from executor")
			}
		}, nil

	case requests.OpRegisterExecutor:
		var p requests.RegisterExecutorPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		executor := model.Executor{
			ID:           p.ExecutorID,
			Addr:         p.Addr,
			Extractor:    p.Extractor.Name,
			LastSeenSecs: p.TsSecs,
		}
		if err := putEntity(txn, storage.Executors, executor.ID, executor); err != nil {
			return nil, err
		}
		if err := putEntity(txn, storage.Extractors, p.Extractor.Name, p.Extractor); err != nil {
			return nil, err
		}
		return func() {
			e.idx.ExecutorsByExtractor.Insert(p.Extractor.Name, p.ExecutorID)
			e.idx.ExecutorRunningTaskCount.Insert(p.ExecutorID, 0)
		}, nil

	case requests.OpRemoveExecutor:
		var p requests.RemoveExecutorPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		executor, ok, err := getEntity[model.Executor](txn, storage.Executors, p.ExecutorID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, cerrors.NewDatabaseError("executor %s not found", p.ExecutorID)
		}
		if err := txn.Delete(storage.Executors, p.ExecutorID); err != nil {
			return nil, err
		}
		var recovered []string
		assignment, ok, err := getEntity[model.TaskAssignment](txn, storage.TaskAssignments, p.ExecutorID)
		if err != nil {
			return nil, err
		}
		if ok {
			for taskID := range assignment.TaskIDs {
				recovered = append(recovered, taskID)
			}
			if err := txn.Delete(storage.TaskAssignments, p.ExecutorID); err != nil {
				return nil, err
			}
		}
		return func() {
			e.idx.ExecutorsByExtractor.Remove(executor.Extractor, p.ExecutorID)
			for _, taskID := range recovered {
				e.idx.UnassignedTasks.Insert(taskID)
			}
			e.idx.ExecutorRunningTaskCount.Remove(p.ExecutorID)
		}, nil

	case requests.OpCreateContent:
		var p requests.CreateContentPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		written := make([]model.ContentMetadata, 0, len(p.ContentMetadata))
		for _, cm := range p.ContentMetadata {
			w, err := lineage.WriteWithParentAttachment(txn, cm)
			if err != nil {
				return nil, err
			}
			written = append(written, w)
		}
		return func() {
			for _, w := range written {
				e.idx.InsertContentByNamespace(w.Namespace, w.ID)
				if !w.ParentID.IsEmpty() {
					e.idx.ContentChildren.Insert(w.ParentID, w.ID)
				}
			}
		}, nil

	case requests.OpUpdateContent:
		var p requests.UpdateContentPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		for _, u := range p.Updates {
			oldKey, err := ids.ParseKey(u.OldKey)
			if err != nil {
				return nil, cerrors.NewDatabaseError("invalid old_key %q: %v", u.OldKey, err)
			}
			if err := lineage.RewireParentOnUpdate(txn, e.idx, oldKey, u.NewContent); err != nil {
				return nil, err
			}
		}
		return nil, nil

	case requests.OpTombstoneContentTree:
		var p requests.TombstoneContentTreePayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		if err := lineage.TombstonePropagate(txn, e.idx, p.ContentIDs); err != nil {
			return nil, err
		}
		return nil, nil

	case requests.OpCreateExtractionPolicy:
		var p requests.CreateExtractionPolicyPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		if err := putEntity(txn, storage.ExtractionPolicies, p.Policy.ID, p.Policy); err != nil {
			return nil, err
		}
		if p.UpdatedSchema != nil {
			if err := putEntity(txn, storage.StructuredDataSchemas, p.UpdatedSchema.ID, *p.UpdatedSchema); err != nil {
				return nil, err
			}
		}
		if p.NewSchema != nil {
			if err := putEntity(txn, storage.StructuredDataSchemas, p.NewSchema.ID, *p.NewSchema); err != nil {
				return nil, err
			}
		}
		return func() {
			e.idx.PoliciesByNamespace.Insert(p.Policy.Namespace, p.Policy.ID)
			if p.UpdatedSchema != nil {
				e.idx.SchemasByNamespace.Insert(p.UpdatedSchema.Namespace, p.UpdatedSchema.ID)
			}
			if p.NewSchema != nil {
				e.idx.SchemasByNamespace.Insert(p.NewSchema.Namespace, p.NewSchema.ID)
			}
		}, nil

	case requests.OpSetContentExtractionPolicyMappings:
		var p requests.SetContentExtractionPolicyMappingsPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		for _, m := range p.Mappings {
			mapping, ok, err := getEntity[model.ContentExtractionPolicyMapping](txn, storage.ExtractionPoliciesAppliedOnContent, m.ContentKey)
			if err != nil {
				return nil, err
			}
			if !ok {
				mapping = model.ContentExtractionPolicyMapping{
					ContentKey:             m.ContentKey,
					ExtractionPolicyIDs:    map[string]struct{}{},
					TimeOfPolicyCompletion: map[string]time.Time{},
				}
			}
			if mapping.ExtractionPolicyIDs == nil {
				mapping.ExtractionPolicyIDs = map[string]struct{}{}
			}
			if mapping.TimeOfPolicyCompletion == nil {
				mapping.TimeOfPolicyCompletion = map[string]time.Time{}
			}
			for _, id := range m.ExtractionPolicyIDs {
				mapping.ExtractionPolicyIDs[id] = struct{}{}
			}
			for id, t := range m.TimeOfPolicyCompletion {
				mapping.TimeOfPolicyCompletion[id] = t
			}
			if err := putEntity(txn, storage.ExtractionPoliciesAppliedOnContent, m.ContentKey, mapping); err != nil {
				return nil, err
			}
		}
		return nil, nil

	case requests.OpMarkExtractionPolicyAppliedOnContent:
		var p requests.MarkExtractionPolicyAppliedOnContentPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		latest, err := lineage.ResolveLatestVersion(txn, p.ContentID)
		if err != nil {
			return nil, err
		}
		if latest == 0 {
			return nil, cerrors.NewDatabaseError("content %s not found", p.ContentID)
		}
		key := ids.ContentId{ID: p.ContentID, Version: latest}.Key()
		mapping, ok, err := getEntity[model.ContentExtractionPolicyMapping](txn, storage.ExtractionPoliciesAppliedOnContent, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, cerrors.NewDatabaseError("extraction policy mapping for %s not found", key)
		}
		if _, registered := mapping.ExtractionPolicyIDs[p.PolicyID]; !registered {
			return nil, cerrors.NewDatabaseError("policy %s not registered on content %s", p.PolicyID, key)
		}
		if mapping.TimeOfPolicyCompletion == nil {
			mapping.TimeOfPolicyCompletion = map[string]time.Time{}
		}
		mapping.TimeOfPolicyCompletion[p.PolicyID] = p.CompletionTime
		if err := putEntity(txn, storage.ExtractionPoliciesAppliedOnContent, key, mapping); err != nil {
			return nil, err
		}
		return nil, nil

	case requests.OpCreateNamespace:
		var p requests.CreateNamespacePayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		ns := model.Namespace{Name: p.Name, SchemaID: p.Schema.ID}
		if err := putEntity(txn, storage.Namespaces, ns.Name, ns); err != nil {
			return nil, err
		}
		if err := putEntity(txn, storage.StructuredDataSchemas, p.Schema.ID, p.Schema); err != nil {
			return nil, err
		}
		return func() {
			e.idx.SchemasByNamespace.Insert(p.Schema.Namespace, p.Schema.ID)
		}, nil

	case requests.OpMarkStateChangesProcessed:
		var p requests.MarkStateChangesProcessedPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		now := time.Now()
		for _, id := range p.StateChangeIDs {
			sc, ok, err := getEntity[model.StateChange](txn, storage.StateChanges, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, cerrors.NewDatabaseError("State change not found")
			}
			at := now
			sc.ProcessedAt = &at
			if err := putEntity(txn, storage.StateChanges, id, sc); err != nil {
				return nil, err
			}
		}
		return func() {
			for _, id := range p.StateChangeIDs {
				e.idx.UnprocessedStateChanges.Remove(id)
			}
		}, nil

	case requests.OpJoinCluster:
		var p requests.JoinClusterPayload
		if err := decodePayload(req, &p); err != nil {
			return nil, err
		}
		addr := model.CoordinatorAddress{NodeID: p.NodeID, Address: p.CoordinatorAddr}
		if err := putEntity(txn, storage.CoordinatorAddress, p.NodeID, addr); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown op: %s", req.Op)
	}
}
