package requests

import (
	"encoding/json"
	"time"

	"github.com/cuemby/coordinator/pkg/ids"
	"github.com/cuemby/coordinator/pkg/model"
)

// Op tags which payload variant a Request carries.
type Op string

const (
	OpCreateIndex                          Op = "create_index"
	OpCreateTasks                          Op = "create_tasks"
	OpCreateOrAssignGarbageCollectionTask  Op = "create_or_assign_gc_task"
	OpUpdateGarbageCollectionTask          Op = "update_gc_task"
	OpAssignTask                           Op = "assign_task"
	OpUpdateTask                           Op = "update_task"
	OpRegisterExecutor                     Op = "register_executor"
	OpRemoveExecutor                       Op = "remove_executor"
	OpCreateContent                        Op = "create_content"
	OpUpdateContent                        Op = "update_content"
	OpTombstoneContentTree                 Op = "tombstone_content_tree"
	OpCreateExtractionPolicy               Op = "create_extraction_policy"
	OpSetContentExtractionPolicyMappings   Op = "set_content_extraction_policy_mappings"
	OpMarkExtractionPolicyAppliedOnContent Op = "mark_extraction_policy_applied_on_content"
	OpCreateNamespace                      Op = "create_namespace"
	OpMarkStateChangesProcessed            Op = "mark_state_changes_processed"
	OpJoinCluster                          Op = "join_cluster"
)

// StateChangeProcessed marks one state change as handled, the envelope-level
// bookkeeping common to every apply.
type StateChangeProcessed struct {
	StateChangeID string    `json:"state_change_id"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// Request is the update request envelope. new_state_changes and
// state_changes_processed are handled identically for every Op; Payload is
// the sole carrier of intent and is dispatched on Op.
type Request struct {
	NewStateChanges       []model.StateChange    `json:"new_state_changes"`
	StateChangesProcessed []StateChangeProcessed `json:"state_changes_processed"`
	Op                    Op                     `json:"op"`
	Payload               json.RawMessage        `json:"payload"`
}

func build(op Op, newStateChanges []model.StateChange, processed []StateChangeProcessed, payload any) (Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Request{}, err
	}
	return Request{
		NewStateChanges:       newStateChanges,
		StateChangesProcessed: processed,
		Op:                    op,
		Payload:               data,
	}, nil
}

// CreateIndexPayload is the CreateIndex variant: write index row; reverse
// indexes_by_namespace[index.Namespace] += index.ID.
type CreateIndexPayload struct {
	Index model.Index `json:"index"`
}

// NewCreateIndexRequest builds a Request carrying CreateIndexPayload.
func NewCreateIndexRequest(index model.Index, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpCreateIndex, newStateChanges, processed, CreateIndexPayload{Index: index})
}

// CreateTasksPayload is the CreateTasks variant: write each task; reverse
// unassigned_tasks += ids, unfinished_tasks_by_extractor[extractor] += id.
type CreateTasksPayload struct {
	Tasks []model.Task `json:"tasks"`
}

func NewCreateTasksRequest(tasks []model.Task, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpCreateTasks, newStateChanges, processed, CreateTasksPayload{Tasks: tasks})
}

// CreateOrAssignGarbageCollectionTaskPayload writes each GC task; no reverse
// mutation.
type CreateOrAssignGarbageCollectionTaskPayload struct {
	GCTasks []model.GarbageCollectionTask `json:"gc_tasks"`
}

func NewCreateOrAssignGarbageCollectionTaskRequest(tasks []model.GarbageCollectionTask, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpCreateOrAssignGarbageCollectionTask, newStateChanges, processed, CreateOrAssignGarbageCollectionTaskPayload{GCTasks: tasks})
}

// UpdateGarbageCollectionTaskPayload writes the GC task row; if MarkFinished,
// the target content row is deleted and the parent->child edge removed.
type UpdateGarbageCollectionTaskPayload struct {
	GCTask       model.GarbageCollectionTask `json:"gc_task"`
	MarkFinished bool                        `json:"mark_finished"`
}

func NewUpdateGarbageCollectionTaskRequest(task model.GarbageCollectionTask, markFinished bool, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpUpdateGarbageCollectionTask, newStateChanges, processed, UpdateGarbageCollectionTaskPayload{GCTask: task, MarkFinished: markFinished})
}

// AssignTaskPayload maps task id to executor id; reverse: unassigned_tasks
// -= ids, executor_running_task_count[executor] += 1 per assigned task.
type AssignTaskPayload struct {
	Assignments map[string]string `json:"assignments"`
}

func NewAssignTaskRequest(assignments map[string]string, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpAssignTask, newStateChanges, processed, AssignTaskPayload{Assignments: assignments})
}

// UpdateTaskPayload overwrites the task row and persists accompanying
// content metadata. If MarkFinished and ExecutorID is set, the task is
// removed from that executor's assignment set and the unfinished indexes.
type UpdateTaskPayload struct {
	Task            model.Task              `json:"task"`
	MarkFinished    bool                    `json:"mark_finished"`
	ExecutorID      string                  `json:"executor_id"`
	ContentMetadata []model.ContentMetadata `json:"content_metadata"`
}

func NewUpdateTaskRequest(task model.Task, markFinished bool, executorID string, contentMetadata []model.ContentMetadata, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpUpdateTask, newStateChanges, processed, UpdateTaskPayload{
		Task:            task,
		MarkFinished:    markFinished,
		ExecutorID:      executorID,
		ContentMetadata: contentMetadata,
	})
}

// RegisterExecutorPayload writes the executor and extractor records; reverse:
// executors_by_extractor[extractor] += id, executor_running_task_count[id] = 0.
type RegisterExecutorPayload struct {
	Addr       string                     `json:"addr"`
	ExecutorID string                     `json:"executor_id"`
	Extractor  model.ExtractorDescription `json:"extractor"`
	TsSecs     uint64                     `json:"ts_secs"`
}

func NewRegisterExecutorRequest(addr, executorID string, extractor model.ExtractorDescription, tsSecs uint64, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpRegisterExecutor, newStateChanges, processed, RegisterExecutorPayload{
		Addr:       addr,
		ExecutorID: executorID,
		Extractor:  extractor,
		TsSecs:     tsSecs,
	})
}

// RemoveExecutorPayload drives the ordering exception: the
// transaction commits before the reverse-index mutations run.
type RemoveExecutorPayload struct {
	ExecutorID string `json:"executor_id"`
}

func NewRemoveExecutorRequest(executorID string, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpRemoveExecutor, newStateChanges, processed, RemoveExecutorPayload{ExecutorID: executorID})
}

// CreateContentPayload writes each item with parent attachment; reverse:
// content_by_namespace[ns] += id, content_children[parent] += id.
type CreateContentPayload struct {
	ContentMetadata []model.ContentMetadata `json:"content_metadata"`
}

func NewCreateContentRequest(content []model.ContentMetadata, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpCreateContent, newStateChanges, processed, CreateContentPayload{ContentMetadata: content})
}

// ContentUpdate is one entry of UpdateContentPayload.Updates: OldKey is the
// versioned key being replaced ("<id>::v<n>"), NewContent is the new row.
type ContentUpdate struct {
	OldKey     string                `json:"old_key"`
	NewContent model.ContentMetadata `json:"new_content"`
}

// UpdateContentPayload rewires children and writes the new row for each
// update; reverse: move ids between namespace sets, replace_parent in
// the children index.
type UpdateContentPayload struct {
	Updates []ContentUpdate `json:"updates"`
}

func NewUpdateContentRequest(updates []ContentUpdate, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpUpdateContent, newStateChanges, processed, UpdateContentPayload{Updates: updates})
}

// TombstoneContentTreePayload drives tombstone propagation; no
// reverse mutation, since tombstoned is a field, not a structural change.
type TombstoneContentTreePayload struct {
	Namespace  string          `json:"namespace"`
	ContentIDs []ids.ContentId `json:"content_ids"`
}

func NewTombstoneContentTreeRequest(namespace string, contentIDs []ids.ContentId, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpTombstoneContentTree, newStateChanges, processed, TombstoneContentTreePayload{Namespace: namespace, ContentIDs: contentIDs})
}

// CreateExtractionPolicyPayload writes the policy and any accompanying
// schema(s); reverse: policies_by_namespace[policy.Namespace] += policy.ID,
// and for each non-nil schema, schemas_by_namespace[schema.Namespace] += id.
type CreateExtractionPolicyPayload struct {
	Policy        model.ExtractionPolicy      `json:"policy"`
	UpdatedSchema *model.StructuredDataSchema `json:"updated_schema,omitempty"`
	NewSchema     *model.StructuredDataSchema `json:"new_schema,omitempty"`
}

func NewCreateExtractionPolicyRequest(policy model.ExtractionPolicy, updatedSchema, newSchema *model.StructuredDataSchema, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpCreateExtractionPolicy, newStateChanges, processed, CreateExtractionPolicyPayload{
		Policy:        policy,
		UpdatedSchema: updatedSchema,
		NewSchema:     newSchema,
	})
}

// ContentPolicyMappingUpdate is one entry of
// SetContentExtractionPolicyMappingsPayload.Mappings.
type ContentPolicyMappingUpdate struct {
	ContentKey             string               `json:"content_key"`
	ExtractionPolicyIDs    []string             `json:"extraction_policy_ids"`
	TimeOfPolicyCompletion map[string]time.Time `json:"time_of_policy_completion"`
}

// SetContentExtractionPolicyMappingsPayload unions each mapping's policy-id
// set and completion-time map into the existing (or newly created empty)
// row.
type SetContentExtractionPolicyMappingsPayload struct {
	Mappings []ContentPolicyMappingUpdate `json:"mappings"`
}

func NewSetContentExtractionPolicyMappingsRequest(mappings []ContentPolicyMappingUpdate, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpSetContentExtractionPolicyMappings, newStateChanges, processed, SetContentExtractionPolicyMappingsPayload{Mappings: mappings})
}

// MarkExtractionPolicyAppliedOnContentPayload resolves the latest version of
// ContentID, requires PolicyID already registered in that content's mapping,
// and records CompletionTime against it.
type MarkExtractionPolicyAppliedOnContentPayload struct {
	ContentID      string    `json:"content_id"`
	PolicyID       string    `json:"policy_id"`
	CompletionTime time.Time `json:"completion_time"`
}

func NewMarkExtractionPolicyAppliedOnContentRequest(contentID, policyID string, completionTime time.Time, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpMarkExtractionPolicyAppliedOnContent, newStateChanges, processed, MarkExtractionPolicyAppliedOnContentPayload{
		ContentID:      contentID,
		PolicyID:       policyID,
		CompletionTime: completionTime,
	})
}

// CreateNamespacePayload writes the namespace and its bundled schema;
// reverse: schemas_by_namespace[schema.Namespace] += schema.ID.
type CreateNamespacePayload struct {
	Name   string                     `json:"name"`
	Schema model.StructuredDataSchema `json:"schema"`
}

func NewCreateNamespaceRequest(name string, schema model.StructuredDataSchema, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpCreateNamespace, newStateChanges, processed, CreateNamespacePayload{Name: name, Schema: schema})
}

// MarkStateChangesProcessedPayload is identical in effect to the envelope's
// generic state_changes_processed bookkeeping; it exists for
// requests whose only purpose is marking state changes processed.
type MarkStateChangesProcessedPayload struct {
	StateChangeIDs []string `json:"state_change_ids"`
}

func NewMarkStateChangesProcessedRequest(stateChangeIDs []string, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpMarkStateChangesProcessed, newStateChanges, processed, MarkStateChangesProcessedPayload{StateChangeIDs: stateChangeIDs})
}

// JoinClusterPayload writes a coordinator address row; no reverse mutation.
type JoinClusterPayload struct {
	NodeID          string `json:"node_id"`
	Address         string `json:"address"`
	CoordinatorAddr string `json:"coordinator_addr"`
}

func NewJoinClusterRequest(nodeID, address, coordinatorAddr string, newStateChanges []model.StateChange, processed []StateChangeProcessed) (Request, error) {
	return build(OpJoinCluster, newStateChanges, processed, JoinClusterPayload{
		NodeID:          nodeID,
		Address:         address,
		CoordinatorAddr: coordinatorAddr,
	})
}
