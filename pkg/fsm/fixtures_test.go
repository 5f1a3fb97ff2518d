package fsm

import (
	"github.com/cuemby/coordinator/pkg/ids"
	"github.com/cuemby/coordinator/pkg/model"
)

// Test-only builders shared across this package's tests.

func testContent(id string, version uint64, parent, namespace string) model.ContentMetadata {
	return model.ContentMetadata{
		ID:        ids.ContentId{ID: id, Version: version},
		ParentID:  ids.ContentId{ID: parent},
		Namespace: namespace,
	}
}

func testTask(id, extractor string) model.Task {
	return model.Task{ID: id, ExtractorName: extractor}
}
