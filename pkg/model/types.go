// Package model holds the plain data types persisted by the state machine
// core. None of these types carry behavior beyond small helpers; the
// operations that mutate them live in pkg/lineage and pkg/fsm.
package model

import (
	"time"

	"github.com/cuemby/coordinator/pkg/ids"
)

// StateChange is a globally ordered event produced by a prior apply.
// ProcessedAt is nil until a later apply marks it processed; the row is
// retained persistently either way.
type StateChange struct {
	ID          string
	Payload     string
	ProcessedAt *time.Time
}

// TaskState is the lifecycle of an extraction Task.
type TaskState string

const (
	TaskStateUnassigned TaskState = "unassigned"
	TaskStateAssigned   TaskState = "assigned"
	TaskStateFinished   TaskState = "finished"
)

// Task is a unit of extraction work bound to a content item via an
// extractor name. Created unassigned; transitions to assigned when mapped
// to an executor; removed from the unfinished set when marked finished.
type Task struct {
	ID            string
	ExtractorName string
	ContentID     ids.ContentId
	OutputIndex   string
	Finished      bool
}

// GarbageCollectionTask directs the deletion of one content version and its
// detachment from its parent. MarkFinished is set when the actual delete
// occurs (UpdateGarbageCollectionTask).
type GarbageCollectionTask struct {
	ID              string
	ContentID       string
	ParentContentID string
	MarkFinished    bool
}

// TaskAssignment is the per-executor row in the TaskAssignments column
// family: the set of task ids currently assigned to that executor.
type TaskAssignment struct {
	ExecutorID string
	TaskIDs    map[string]struct{}
}

// ContentMetadata is a versioned content record. Re-versioning creates a new
// row with a bumped version rather than mutating the old one; tombstoning
// sets a flag and propagates to descendants; deletion removes the row and
// only happens via garbage collection.
type ContentMetadata struct {
	ID          ids.ContentId
	ParentID    ids.ContentId
	Namespace   string
	Name        string
	ContentType string
	Size        int64
	Hash        string
	Source      string
	Tombstoned  bool
	CreatedAt   time.Time
	Labels      map[string]string
}

// Executor is a registered extraction worker.
type Executor struct {
	ID           string
	Addr         string
	Extractor    string
	LastSeenSecs uint64
}

// ExtractorDescription describes an extractor's capabilities, keyed by name.
type ExtractorDescription struct {
	Name        string
	Description string
	InputTypes  []string
	OutputTypes []string
}

// ExtractionPolicy binds content in a namespace to an extractor.
type ExtractionPolicy struct {
	ID            string
	Namespace     string
	Name          string
	ExtractorName string
	Filter        string
}

// StructuredDataSchema is a registered schema, associated with a namespace.
type StructuredDataSchema struct {
	ID        string
	Namespace string
	Columns   map[string]string
}

// Namespace bundles a schema id under a name.
type Namespace struct {
	Name     string
	SchemaID string
}

// Index is a registered vector/attribute index, associated with a
// namespace. The index backend itself is an external collaborator;
// this record only tracks which namespace owns which index id.
type Index struct {
	ID        string
	Namespace string
	Name      string
	Schema    string
}

// ContentExtractionPolicyMapping tracks, for one versioned content key,
// which policy ids have been applied and when each completed.
type ContentExtractionPolicyMapping struct {
	ContentKey             string
	ExtractionPolicyIDs    map[string]struct{}
	TimeOfPolicyCompletion map[string]time.Time
}

// CoordinatorAddress records the network address of a cluster node by id.
type CoordinatorAddress struct {
	NodeID  string
	Address string
}
