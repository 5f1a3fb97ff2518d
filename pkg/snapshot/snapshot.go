// Package snapshot implements the snapshot codec:
// building and installing a single encoded record covering the ten reverse
// indexes. Forward indexes are never included here — those are shipped
// separately by the consensus layer's own state-transfer mechanism.
package snapshot

import (
	"sort"

	"github.com/cuemby/coordinator/pkg/encoding"
	"github.com/cuemby/coordinator/pkg/reverse"
)

// Snapshot is the wire payload: the ten reverse-index collections cloned
// into plain slices and maps.
type Snapshot = reverse.Snapshot

// Build clones the current contents of every reverse index into a Snapshot,
// sorting every member list so equal index contents encode to equal bytes.
func Build(idx *reverse.Indexes) Snapshot {
	s := idx.Snapshot()
	sort.Strings(s.UnassignedTasks)
	sort.Strings(s.UnprocessedStateChanges)
	for _, m := range []map[string][]string{
		s.ContentByNamespace, s.PoliciesByNamespace, s.ExecutorsByExtractor, s.IndexesByNamespace,
		s.UnfinishedTasksByExtractor, s.SchemasByNamespace, s.ContentChildren,
	} {
		for _, vals := range m {
			sort.Strings(vals)
		}
	}
	return s
}

// Install replaces all ten reverse indexes wholesale from s.
func Install(idx *reverse.Indexes, s Snapshot) {
	idx.Restore(s)
}

// Encode serializes a Snapshot via the Encoder.
func Encode(s Snapshot) ([]byte, error) {
	return encoding.Encode(s)
}

// Decode deserializes a Snapshot via the Encoder.
func Decode(b []byte) (Snapshot, error) {
	return encoding.Decode[Snapshot](b)
}
