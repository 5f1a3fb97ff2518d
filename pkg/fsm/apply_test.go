package fsm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/coordinator/pkg/cerrors"
	"github.com/cuemby/coordinator/pkg/ids"
	"github.com/cuemby/coordinator/pkg/lineage"
	"github.com/cuemby/coordinator/pkg/model"
	"github.com/cuemby/coordinator/pkg/requests"
	"github.com/cuemby/coordinator/pkg/reverse"
	"github.com/cuemby/coordinator/pkg/storage"
)

func openTestEngine(t *testing.T) (*Engine, *reverse.Indexes) {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	idx := reverse.New()
	return NewEngine(store, idx), idx
}

func TestRegisterAssignFinishLifecycle(t *testing.T) {
	e, idx := openTestEngine(t)

	extractor := model.ExtractorDescription{Name: "pdf-extractor"}
	reg, err := requests.NewRegisterExecutorRequest("10.0.0.1:9000", "ex1", extractor, 100, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(reg))

	assert.ElementsMatch(t, []string{"ex1"}, idx.ExecutorsByExtractor.Get("pdf-extractor"))
	count, ok := idx.ExecutorRunningTaskCount.Get("ex1")
	require.True(t, ok)
	assert.Equal(t, uint64(0), count)

	task := model.Task{ID: "t1", ExtractorName: "pdf-extractor", ContentID: ids.ContentId{ID: "doc1", Version: 1}}
	create, err := requests.NewCreateTasksRequest([]model.Task{task}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(create))

	assert.True(t, idx.UnassignedTasks.Contains("t1"))
	assert.ElementsMatch(t, []string{"t1"}, idx.UnfinishedTasksByExtractor.Get("pdf-extractor"))

	assign, err := requests.NewAssignTaskRequest(map[string]string{"t1": "ex1"}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(assign))

	assert.False(t, idx.UnassignedTasks.Contains("t1"))
	count, ok = idx.ExecutorRunningTaskCount.Get("ex1")
	require.True(t, ok)
	assert.Equal(t, uint64(1), count)

	finish, err := requests.NewUpdateTaskRequest(task, true, "ex1", nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(finish))

	count, ok = idx.ExecutorRunningTaskCount.Get("ex1")
	require.True(t, ok)
	assert.Equal(t, uint64(0), count)
	assert.Empty(t, idx.UnfinishedTasksByExtractor.Get("pdf-extractor"))
}

func TestRemoveExecutorReclaimsTasksAfterCommit(t *testing.T) {
	e, idx := openTestEngine(t)

	extractor := model.ExtractorDescription{Name: "pdf-extractor"}
	reg, err := requests.NewRegisterExecutorRequest("10.0.0.1:9000", "ex1", extractor, 100, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(reg))

	task := model.Task{ID: "t1", ExtractorName: "pdf-extractor"}
	create, err := requests.NewCreateTasksRequest([]model.Task{task}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(create))

	assign, err := requests.NewAssignTaskRequest(map[string]string{"t1": "ex1"}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(assign))
	require.False(t, idx.UnassignedTasks.Contains("t1"))

	remove, err := requests.NewRemoveExecutorRequest("ex1", nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(remove))

	assert.True(t, idx.UnassignedTasks.Contains("t1"))
	assert.Empty(t, idx.ExecutorsByExtractor.Get("pdf-extractor"))
	_, ok := idx.ExecutorRunningTaskCount.Get("ex1")
	assert.False(t, ok)
}

func TestRemoveExecutorOnUnknownExecutorFails(t *testing.T) {
	e, _ := openTestEngine(t)
	remove, err := requests.NewRemoveExecutorRequest("ghost", nil, nil)
	require.NoError(t, err)

	err = e.Apply(remove)
	require.Error(t, err)
	var dbErr *cerrors.DatabaseError
	assert.True(t, errors.As(err, &dbErr))
}

func TestContentVersioningAndParentRewiring(t *testing.T) {
	e, idx := openTestEngine(t)

	root := model.ContentMetadata{ID: ids.ContentId{ID: "root", Version: 1}, Namespace: "ns1"}
	createRoot, err := requests.NewCreateContentRequest([]model.ContentMetadata{root}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(createRoot))

	child := model.ContentMetadata{
		ID:        ids.ContentId{ID: "child", Version: 1},
		ParentID:  ids.ContentId{ID: "root"},
		Namespace: "ns1",
	}
	createChild, err := requests.NewCreateContentRequest([]model.ContentMetadata{child}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(createChild))

	assert.ElementsMatch(t, []ids.ContentId{{ID: "child", Version: 1}},
		idx.ContentChildren.Get(ids.ContentId{ID: "root", Version: 1}))

	newRoot := model.ContentMetadata{ID: ids.ContentId{ID: "root", Version: 2}, Namespace: "ns1"}
	update, err := requests.NewUpdateContentRequest([]requests.ContentUpdate{
		{OldKey: ids.ContentId{ID: "root", Version: 1}.Key(), NewContent: newRoot},
	}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(update))

	assert.Empty(t, idx.ContentChildren.Get(ids.ContentId{ID: "root", Version: 1}))
	assert.ElementsMatch(t, []ids.ContentId{{ID: "child", Version: 1}},
		idx.ContentChildren.Get(ids.ContentId{ID: "root", Version: 2}))
}

func TestGarbageCollectionDeletesTargetVersion(t *testing.T) {
	e, idx := openTestEngine(t)

	root := model.ContentMetadata{ID: ids.ContentId{ID: "root", Version: 1}, Namespace: "ns1"}
	createRoot, err := requests.NewCreateContentRequest([]model.ContentMetadata{root}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(createRoot))

	child := model.ContentMetadata{
		ID:        ids.ContentId{ID: "child", Version: 1},
		ParentID:  ids.ContentId{ID: "root"},
		Namespace: "ns1",
	}
	createChild, err := requests.NewCreateContentRequest([]model.ContentMetadata{child}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(createChild))

	gcTask := model.GarbageCollectionTask{ID: "gc1", ContentID: "child", ParentContentID: "root"}
	create, err := requests.NewCreateOrAssignGarbageCollectionTaskRequest([]model.GarbageCollectionTask{gcTask}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(create))

	finish, err := requests.NewUpdateGarbageCollectionTaskRequest(gcTask, true, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(finish))

	assert.Empty(t, idx.ContentChildren.Get(ids.ContentId{ID: "root", Version: 1}))

	err = e.store.View(func(txn *storage.Txn) error {
		_, ok, err := lineage.GetContent(txn, ids.ContentId{ID: "child", Version: 1})
		require.NoError(t, err)
		assert.False(t, ok, "expected child::v1 to be deleted")
		return nil
	})
	require.NoError(t, err)
}

func TestTombstonePropagatesToDescendants(t *testing.T) {
	e, _ := openTestEngine(t)

	root := model.ContentMetadata{ID: ids.ContentId{ID: "root", Version: 1}, Namespace: "ns1"}
	mid := model.ContentMetadata{ID: ids.ContentId{ID: "mid", Version: 1}, ParentID: ids.ContentId{ID: "root"}, Namespace: "ns1"}
	leaf := model.ContentMetadata{ID: ids.ContentId{ID: "leaf", Version: 1}, ParentID: ids.ContentId{ID: "mid"}, Namespace: "ns1"}

	createAll, err := requests.NewCreateContentRequest([]model.ContentMetadata{root}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(createAll))
	createMid, err := requests.NewCreateContentRequest([]model.ContentMetadata{mid}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(createMid))
	createLeaf, err := requests.NewCreateContentRequest([]model.ContentMetadata{leaf}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(createLeaf))

	tombstone, err := requests.NewTombstoneContentTreeRequest("ns1", []ids.ContentId{{ID: "root", Version: 1}}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(tombstone))

	err = e.store.View(func(txn *storage.Txn) error {
		for _, id := range []string{"root", "mid", "leaf"} {
			row, ok, err := lineage.GetContent(txn, ids.ContentId{ID: id, Version: 1})
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, row.Tombstoned, "expected %s::v1 to be tombstoned", id)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLatestVersionResolutionIsNumericAcrossApplies(t *testing.T) {
	e, _ := openTestEngine(t)

	for v := uint64(1); v <= 10; v++ {
		cm := model.ContentMetadata{ID: ids.ContentId{ID: "doc", Version: v}, Namespace: "ns1"}
		req, err := requests.NewCreateContentRequest([]model.ContentMetadata{cm}, nil, nil)
		require.NoError(t, err)
		require.NoError(t, e.Apply(req))
	}

	mapping := requests.ContentPolicyMappingUpdate{
		ContentKey:          ids.ContentId{ID: "doc", Version: 10}.Key(),
		ExtractionPolicyIDs: []string{"pol1"},
	}
	setMappings, err := requests.NewSetContentExtractionPolicyMappingsRequest(
		[]requests.ContentPolicyMappingUpdate{mapping}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(setMappings))

	mark, err := requests.NewMarkExtractionPolicyAppliedOnContentRequest("doc", "pol1", time.Now(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(mark))
}

func TestMarkExtractionPolicyAppliedOnContentFailsWhenPolicyNotRegistered(t *testing.T) {
	e, _ := openTestEngine(t)

	cm := model.ContentMetadata{ID: ids.ContentId{ID: "doc", Version: 1}, Namespace: "ns1"}
	create, err := requests.NewCreateContentRequest([]model.ContentMetadata{cm}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(create))

	mapping := requests.ContentPolicyMappingUpdate{ContentKey: ids.ContentId{ID: "doc", Version: 1}.Key()}
	setMappings, err := requests.NewSetContentExtractionPolicyMappingsRequest(
		[]requests.ContentPolicyMappingUpdate{mapping}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(setMappings))

	mark, err := requests.NewMarkExtractionPolicyAppliedOnContentRequest("doc", "never-registered", time.Now(), nil, nil)
	require.NoError(t, err)

	err = e.Apply(mark)
	require.Error(t, err)
	var dbErr *cerrors.DatabaseError
	assert.True(t, errors.As(err, &dbErr))
}

func TestEnvelopeStateChangeBookkeeping(t *testing.T) {
	e, idx := openTestEngine(t)

	sc := model.StateChange{ID: "sc1", Payload: "content-created"}
	create, err := requests.NewCreateNamespaceRequest("ns1", model.StructuredDataSchema{ID: "schema1", Namespace: "ns1"},
		[]model.StateChange{sc}, nil)
	require.NoError(t, err)
	require.NoError(t, e.Apply(create))

	assert.True(t, idx.UnprocessedStateChanges.Contains("sc1"))

	markProcessed, err := requests.NewCreateNamespaceRequest("ns2", model.StructuredDataSchema{ID: "schema2", Namespace: "ns2"},
		nil, []requests.StateChangeProcessed{{StateChangeID: "sc1", ProcessedAt: time.Now()}})
	require.NoError(t, err)
	require.NoError(t, e.Apply(markProcessed))

	assert.False(t, idx.UnprocessedStateChanges.Contains("sc1"))
}

func TestStateChangeCreatedAndProcessedInSameRequest(t *testing.T) {
	e, idx := openTestEngine(t)

	sc := model.StateChange{ID: "sc1", Payload: "content-created"}
	req, err := requests.NewCreateNamespaceRequest("ns1", model.StructuredDataSchema{ID: "schema1", Namespace: "ns1"},
		[]model.StateChange{sc}, []requests.StateChangeProcessed{{StateChangeID: "sc1", ProcessedAt: time.Now()}})
	require.NoError(t, err)

	require.NoError(t, e.Apply(req))
	assert.False(t, idx.UnprocessedStateChanges.Contains("sc1"))
}

func TestMarkStateChangesProcessedFailsOnUnknownID(t *testing.T) {
	e, _ := openTestEngine(t)
	req, err := requests.NewMarkStateChangesProcessedRequest([]string{"ghost"}, nil, nil)
	require.NoError(t, err)

	err = e.Apply(req)
	require.Error(t, err)
	var dbErr *cerrors.DatabaseError
	assert.True(t, errors.As(err, &dbErr))
}
