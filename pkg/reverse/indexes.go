package reverse

import "github.com/cuemby/coordinator/pkg/ids"

// Indexes bundles the ten reverse indexes. Every apply
// operation in pkg/fsm takes a *Indexes alongside a *storage.Txn; each field
// is independently locked so concurrent reads (the Query Surface) never
// block on an unrelated field's mutation.
type Indexes struct {
	UnassignedTasks            *StringSet
	UnprocessedStateChanges    *StringSet
	ContentByNamespace         *GroupedSet
	PoliciesByNamespace        *GroupedSet
	ExecutorsByExtractor       *GroupedSet
	IndexesByNamespace         *GroupedSet
	UnfinishedTasksByExtractor *GroupedSet
	ExecutorRunningTaskCount   *ExecutorRunningTaskCount
	SchemasByNamespace         *GroupedSet
	ContentChildren            *ContentChildren
}

// New returns an empty set of reverse indexes.
func New() *Indexes {
	return &Indexes{
		UnassignedTasks:            newStringSet(),
		UnprocessedStateChanges:    newStringSet(),
		ContentByNamespace:         newGroupedSet(),
		PoliciesByNamespace:        newGroupedSet(),
		ExecutorsByExtractor:       newGroupedSet(),
		IndexesByNamespace:         newGroupedSet(),
		UnfinishedTasksByExtractor: newGroupedSet(),
		ExecutorRunningTaskCount:   NewExecutorRunningTaskCount(),
		SchemasByNamespace:         newGroupedSet(),
		ContentChildren:            NewContentChildren(),
	}
}

// ContentByNamespaceIDs returns the ContentId values recorded for namespace,
// parsing each stored "<id>::v<version>" key. Malformed keys (which should
// never occur; only InsertContentByNamespace writes this group) are skipped.
func (idx *Indexes) ContentByNamespaceIDs(namespace string) []ids.ContentId {
	raw := idx.ContentByNamespace.Get(namespace)
	out := make([]ids.ContentId, 0, len(raw))
	for _, key := range raw {
		if id, err := ids.ParseKey(key); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// InsertContentByNamespace records contentID under namespace.
func (idx *Indexes) InsertContentByNamespace(namespace string, contentID ids.ContentId) {
	idx.ContentByNamespace.Insert(namespace, contentID.Key())
}

// RemoveContentByNamespace drops contentID from namespace's set.
func (idx *Indexes) RemoveContentByNamespace(namespace string, contentID ids.ContentId) {
	idx.ContentByNamespace.Remove(namespace, contentID.Key())
}

// Snapshot is the ten-collection payload pkg/snapshot persists and restores.
// Every field uses plain slices/maps so it encodes with pkg/encoding
// directly.
type Snapshot struct {
	UnassignedTasks            []string            `json:"unassigned_tasks"`
	UnprocessedStateChanges    []string            `json:"unprocessed_state_changes"`
	ContentByNamespace         map[string][]string `json:"content_by_namespace"`
	PoliciesByNamespace        map[string][]string `json:"policies_by_namespace"`
	ExecutorsByExtractor       map[string][]string `json:"executors_by_extractor"`
	IndexesByNamespace         map[string][]string `json:"indexes_by_namespace"`
	UnfinishedTasksByExtractor map[string][]string `json:"unfinished_tasks_by_extractor"`
	ExecutorRunningTaskCount   map[string]uint64   `json:"executor_running_task_count"`
	SchemasByNamespace         map[string][]string `json:"schemas_by_namespace"`
	ContentChildren            map[string][]string `json:"content_children"`
}

// Snapshot captures the current contents of every reverse index.
func (idx *Indexes) Snapshot() Snapshot {
	return Snapshot{
		UnassignedTasks:            idx.UnassignedTasks.Snapshot(),
		UnprocessedStateChanges:    idx.UnprocessedStateChanges.Snapshot(),
		ContentByNamespace:         idx.ContentByNamespace.Snapshot(),
		PoliciesByNamespace:        idx.PoliciesByNamespace.Snapshot(),
		ExecutorsByExtractor:       idx.ExecutorsByExtractor.Snapshot(),
		IndexesByNamespace:         idx.IndexesByNamespace.Snapshot(),
		UnfinishedTasksByExtractor: idx.UnfinishedTasksByExtractor.Snapshot(),
		ExecutorRunningTaskCount:   idx.ExecutorRunningTaskCount.Snapshot(),
		SchemasByNamespace:         idx.SchemasByNamespace.Snapshot(),
		ContentChildren:            idx.ContentChildren.Snapshot(),
	}
}

// Restore overwrites every index from a Snapshot, used when installing a
// raft snapshot on a follower.
func (idx *Indexes) Restore(s Snapshot) {
	idx.UnassignedTasks.Replace(s.UnassignedTasks)
	idx.UnprocessedStateChanges.Replace(s.UnprocessedStateChanges)
	idx.ContentByNamespace.Replace(s.ContentByNamespace)
	idx.PoliciesByNamespace.Replace(s.PoliciesByNamespace)
	idx.ExecutorsByExtractor.Replace(s.ExecutorsByExtractor)
	idx.IndexesByNamespace.Replace(s.IndexesByNamespace)
	idx.UnfinishedTasksByExtractor.Replace(s.UnfinishedTasksByExtractor)
	idx.ExecutorRunningTaskCount.Replace(s.ExecutorRunningTaskCount)
	idx.SchemasByNamespace.Replace(s.SchemasByNamespace)
	idx.ContentChildren.Replace(s.ContentChildren)
}
