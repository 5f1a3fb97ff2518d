// Package query implements the Query Surface: every read
// operation exposed by the state machine core, each run inside its own
// short-lived read transaction so "resolve latest version, then fetch body"
// stays internally consistent even while applies continue concurrently.
package query

import (
	"sort"

	"github.com/cuemby/coordinator/pkg/cerrors"
	"github.com/cuemby/coordinator/pkg/encoding"
	"github.com/cuemby/coordinator/pkg/ids"
	"github.com/cuemby/coordinator/pkg/lineage"
	"github.com/cuemby/coordinator/pkg/model"
	"github.com/cuemby/coordinator/pkg/reverse"
	"github.com/cuemby/coordinator/pkg/storage"
)

// Surface bundles the store and reverse indexes every query reads from.
type Surface struct {
	store *storage.Store
	idx   *reverse.Indexes
}

// New builds a Surface over an already-open store and index set.
func New(store *storage.Store, idx *reverse.Indexes) *Surface {
	return &Surface{store: store, idx: idx}
}

// GetFromCF fetches and decodes a single row by key, the generic form behind
// every other point lookup in this package.
func GetFromCF[T any](s *Surface, cf storage.CF, key string) (T, bool, error) {
	var out T
	var ok bool
	err := s.store.View(func(txn *storage.Txn) error {
		raw, found, err := txn.Get(cf, key)
		if err != nil || !found {
			ok = found
			return err
		}
		v, err := encoding.Decode[T](raw)
		if err != nil {
			return err
		}
		out, ok = v, true
		return nil
	})
	return out, ok, err
}

// GetLatestVersionOfContent returns the highest version stored for id, or 0
// if none exists.
func (s *Surface) GetLatestVersionOfContent(id string) (uint64, error) {
	var latest uint64
	err := s.store.View(func(txn *storage.Txn) error {
		v, err := lineage.ResolveLatestVersion(txn, id)
		latest = v
		return err
	})
	return latest, err
}

// GetContentExtractionPolicyMappingsForContentID resolves id's latest
// version and fetches its policy-mapping row. ok=false means no mapping row
// (including when the content itself has no rows at all).
func (s *Surface) GetContentExtractionPolicyMappingsForContentID(id string) (model.ContentExtractionPolicyMapping, bool, error) {
	var out model.ContentExtractionPolicyMapping
	var ok bool
	err := s.store.View(func(txn *storage.Txn) error {
		latest, err := lineage.ResolveLatestVersion(txn, id)
		if err != nil || latest == 0 {
			return err
		}
		key := ids.ContentId{ID: id, Version: latest}.Key()
		raw, found, err := txn.Get(storage.ExtractionPoliciesAppliedOnContent, key)
		if err != nil || !found {
			ok = found
			return err
		}
		v, err := encoding.Decode[model.ContentExtractionPolicyMapping](raw)
		if err != nil {
			return err
		}
		out, ok = v, true
		return nil
	})
	return out, ok, err
}

// GetTasksForExecutor reads executorID's assignment set and fetches each
// task, truncated to limit when limit is non-nil. A task id present in the
// assignment set but missing from the Tasks column family is a hard
// DatabaseError: assignment and task rows must never diverge.
func (s *Surface) GetTasksForExecutor(executorID string, limit *int) ([]model.Task, error) {
	var out []model.Task
	err := s.store.View(func(txn *storage.Txn) error {
		raw, found, err := txn.Get(storage.TaskAssignments, executorID)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		assignment, err := encoding.Decode[model.TaskAssignment](raw)
		if err != nil {
			return err
		}

		taskIDs := make([]string, 0, len(assignment.TaskIDs))
		for id := range assignment.TaskIDs {
			taskIDs = append(taskIDs, id)
		}
		sort.Strings(taskIDs)
		if limit != nil && *limit < len(taskIDs) {
			taskIDs = taskIDs[:*limit]
		}

		for _, id := range taskIDs {
			taskRaw, found, err := txn.Get(storage.Tasks, id)
			if err != nil {
				return err
			}
			if !found {
				return cerrors.NewDatabaseError("task %s assigned to executor %s not found", id, executorID)
			}
			task, err := encoding.Decode[model.Task](taskRaw)
			if err != nil {
				return err
			}
			out = append(out, task)
		}
		return nil
	})
	return out, err
}

// GetIndexesFromIDs fetches every index by id; a missing id is a hard
// DatabaseError.
func (s *Surface) GetIndexesFromIDs(indexIDs []string) ([]model.Index, error) {
	return fetchAllOrFail[model.Index](s, storage.IndexTable, indexIDs, "index")
}

// GetExecutorsFromIDs fetches every executor by id; a missing id is a hard
// DatabaseError.
func (s *Surface) GetExecutorsFromIDs(executorIDs []string) ([]model.Executor, error) {
	return fetchAllOrFail[model.Executor](s, storage.Executors, executorIDs, "executor")
}

// fetchAllOrFail is the shared shape behind GetIndexesFromIDs and
// GetExecutorsFromIDs: every id must resolve or the whole query fails.
func fetchAllOrFail[T any](s *Surface, cf storage.CF, keys []string, kind string) ([]T, error) {
	out := make([]T, 0, len(keys))
	err := s.store.View(func(txn *storage.Txn) error {
		for _, key := range keys {
			raw, found, err := txn.Get(cf, key)
			if err != nil {
				return err
			}
			if !found {
				return cerrors.NewDatabaseError("%s %s not found", kind, key)
			}
			v, err := encoding.Decode[T](raw)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

// GetContentFromIDs resolves each id to its latest version and fetches the
// body. Ids with no rows (latest version 0) and tombstoned rows are silently
// skipped rather than failing the whole query.
func (s *Surface) GetContentFromIDs(contentIDs []string) ([]model.ContentMetadata, error) {
	var out []model.ContentMetadata
	err := s.store.View(func(txn *storage.Txn) error {
		for _, id := range contentIDs {
			latest, err := lineage.ResolveLatestVersion(txn, id)
			if err != nil {
				return err
			}
			if latest == 0 {
				continue
			}
			c, ok, err := lineage.GetContent(txn, ids.ContentId{ID: id, Version: latest})
			if err != nil {
				return err
			}
			if !ok || c.Tombstoned {
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// GetContentFromIDsWithVersion fetches each id at its exact version. Missing
// rows and tombstoned rows are silently skipped.
func (s *Surface) GetContentFromIDsWithVersion(contentIDs []ids.ContentId) ([]model.ContentMetadata, error) {
	var out []model.ContentMetadata
	err := s.store.View(func(txn *storage.Txn) error {
		for _, id := range contentIDs {
			c, ok, err := lineage.GetContent(txn, id)
			if err != nil {
				return err
			}
			if !ok || c.Tombstoned {
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// GetContentTreeMetadata resolves id's latest version and BFS-traverses
// content_children from there. A node whose latest version is 0 is skipped,
// not aborted; a node whose resolved body is missing is a hard
// DatabaseError. Tombstoned nodes are included: the traversal is structural.
func (s *Surface) GetContentTreeMetadata(id string) ([]model.ContentMetadata, error) {
	var out []model.ContentMetadata
	err := s.store.View(func(txn *storage.Txn) error {
		latest, err := lineage.ResolveLatestVersion(txn, id)
		if err != nil {
			return err
		}
		if latest == 0 {
			return nil
		}
		return s.bfsContentTree(txn, ids.ContentId{ID: id, Version: latest}, true, &out)
	})
	return out, err
}

// GetContentTreeMetadataWithVersion BFS-traverses content_children starting
// at the exact versioned key given, with the same error policy as
// GetContentTreeMetadata.
func (s *Surface) GetContentTreeMetadataWithVersion(root ids.ContentId) ([]model.ContentMetadata, error) {
	var out []model.ContentMetadata
	err := s.store.View(func(txn *storage.Txn) error {
		return s.bfsContentTree(txn, root, false, &out)
	})
	return out, err
}

// bfsContentTree walks content_children from root. With resolveLatest set,
// every node is first resolved to its latest version and skipped when that
// is 0; otherwise each node is read at the exact key it was reached by.
func (s *Surface) bfsContentTree(txn *storage.Txn, root ids.ContentId, resolveLatest bool, out *[]model.ContentMetadata) error {
	queue := []ids.ContentId{root}
	visited := make(map[string]struct{})

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if resolveLatest {
			latest, err := lineage.ResolveLatestVersion(txn, node.ID)
			if err != nil {
				return err
			}
			if latest == 0 {
				continue
			}
			node = ids.ContentId{ID: node.ID, Version: latest}
		}

		key := node.Key()
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}

		c, ok, err := lineage.GetContent(txn, node)
		if err != nil {
			return err
		}
		if !ok {
			return cerrors.NewDatabaseError("content %s not found in tree traversal", node)
		}
		*out = append(*out, c)
		queue = append(queue, s.idx.ContentChildren.Get(node)...)
	}
	return nil
}

// GetExtractionPoliciesFromIDs is a best-effort multi-fetch: missing ids are
// silently skipped. ok=false means the resulting list is empty, contrasting
// with GetSchemas where any miss is a hard failure.
func (s *Surface) GetExtractionPoliciesFromIDs(policyIDs []string) ([]model.ExtractionPolicy, bool, error) {
	var out []model.ExtractionPolicy
	err := s.store.View(func(txn *storage.Txn) error {
		for _, id := range policyIDs {
			raw, found, err := txn.Get(storage.ExtractionPolicies, id)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			p, err := encoding.Decode[model.ExtractionPolicy](raw)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	return out, len(out) > 0, err
}

// GetAllTaskAssignments scans every TaskAssignments row and inverts it into a
// flat task id -> executor id map.
func (s *Surface) GetAllTaskAssignments() (map[string]string, error) {
	out := make(map[string]string)
	err := s.store.View(func(txn *storage.Txn) error {
		return txn.ForEach(storage.TaskAssignments, func(executorID string, raw []byte) error {
			assignment, err := encoding.Decode[model.TaskAssignment](raw)
			if err != nil {
				return err
			}
			for taskID := range assignment.TaskIDs {
				out[taskID] = executorID
			}
			return nil
		})
	})
	return out, err
}

// GetNamespace fetches namespace name and, if present, expands
// policies_by_namespace into the ExtractionPolicy rows it names (missing
// rows skipped). ok=false means the namespace itself does not exist.
func (s *Surface) GetNamespace(name string) (model.Namespace, []model.ExtractionPolicy, bool, error) {
	var ns model.Namespace
	var policies []model.ExtractionPolicy
	var ok bool
	err := s.store.View(func(txn *storage.Txn) error {
		raw, found, err := txn.Get(storage.Namespaces, name)
		if err != nil || !found {
			ok = found
			return err
		}
		v, err := encoding.Decode[model.Namespace](raw)
		if err != nil {
			return err
		}
		ns, ok = v, true

		for _, policyID := range s.idx.PoliciesByNamespace.Get(name) {
			policyRaw, found, err := txn.Get(storage.ExtractionPolicies, policyID)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			p, err := encoding.Decode[model.ExtractionPolicy](policyRaw)
			if err != nil {
				return err
			}
			policies = append(policies, p)
		}
		return nil
	})
	return ns, policies, ok, err
}

// GetSchemas multi-gets schemaIDs; any missing id is a hard DatabaseError,
// unlike GetExtractionPoliciesFromIDs.
func (s *Surface) GetSchemas(schemaIDs []string) ([]model.StructuredDataSchema, error) {
	return fetchAllOrFail[model.StructuredDataSchema](s, storage.StructuredDataSchemas, schemaIDs, "schema")
}
