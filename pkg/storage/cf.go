package storage

// CF names a column family. The set is closed and exhaustive —
// this module registers exactly these thirteen, and nothing in this module registers
// CFs dynamically.
type CF string

const (
	StateChanges                       CF = "state_changes"
	Tasks                              CF = "tasks"
	GarbageCollectionTasks             CF = "gc_tasks"
	TaskAssignments                    CF = "task_assignments"
	ContentTable                       CF = "content"
	Executors                          CF = "executors"
	Extractors                         CF = "extractors"
	ExtractionPolicies                 CF = "extraction_policies"
	StructuredDataSchemas              CF = "structured_data_schemas"
	Namespaces                         CF = "namespaces"
	IndexTable                         CF = "index_table"
	ExtractionPoliciesAppliedOnContent CF = "content_extraction_policy_mappings"
	CoordinatorAddress                 CF = "coordinator_address"
)

// allColumnFamilies lists every CF so Open can create their buckets.
var allColumnFamilies = []CF{
	StateChanges,
	Tasks,
	GarbageCollectionTasks,
	TaskAssignments,
	ContentTable,
	Executors,
	Extractors,
	ExtractionPolicies,
	StructuredDataSchemas,
	Namespaces,
	IndexTable,
	ExtractionPoliciesAppliedOnContent,
	CoordinatorAddress,
}
