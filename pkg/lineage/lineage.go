package lineage

import (
	"github.com/cuemby/coordinator/pkg/cerrors"
	"github.com/cuemby/coordinator/pkg/encoding"
	"github.com/cuemby/coordinator/pkg/ids"
	"github.com/cuemby/coordinator/pkg/log"
	"github.com/cuemby/coordinator/pkg/model"
	"github.com/cuemby/coordinator/pkg/reverse"
	"github.com/cuemby/coordinator/pkg/storage"
)

// ResolveLatestVersion returns the highest version number stored for
// contentID, or 0 if no row exists under any version. It scans within txn so
// writes made earlier in the same apply are visible.
func ResolveLatestVersion(txn *storage.Txn, contentID string) (uint64, error) {
	var latest uint64
	prefix := ids.Prefix(contentID)
	err := txn.IteratePrefix(storage.ContentTable, prefix, func(key string, _ []byte) error {
		if v, ok := ids.ParseVersionSuffix(key, prefix); ok && v > latest {
			latest = v
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return latest, nil
}

// GetContent reads the content row at id, returning ok=false if absent.
func GetContent(txn *storage.Txn, id ids.ContentId) (model.ContentMetadata, bool, error) {
	raw, ok, err := txn.Get(storage.ContentTable, id.Key())
	if err != nil || !ok {
		return model.ContentMetadata{}, ok, err
	}
	c, err := encoding.Decode[model.ContentMetadata](raw)
	if err != nil {
		return model.ContentMetadata{}, false, err
	}
	return c, true, nil
}

// PutContent writes c at its own ContentId key.
func PutContent(txn *storage.Txn, c model.ContentMetadata) error {
	raw, err := encoding.Encode(c)
	if err != nil {
		return err
	}
	return txn.Put(storage.ContentTable, c.ID.Key(), raw)
}

// WriteWithParentAttachment resolves c's parent to the parent's current
// latest version before writing c ("content write with parent
// attachment"). If c.ParentID.ID is empty the content is root-level and is
// written as-is. If the parent has no rows at all, the write fails.
func WriteWithParentAttachment(txn *storage.Txn, c model.ContentMetadata) (model.ContentMetadata, error) {
	if c.ParentID.ID != "" {
		latest, err := ResolveLatestVersion(txn, c.ParentID.ID)
		if err != nil {
			return model.ContentMetadata{}, err
		}
		if latest == 0 {
			return model.ContentMetadata{}, cerrors.NewDatabaseError("Parent content not found")
		}
		c.ParentID.Version = latest
	}
	if err := PutContent(txn, c); err != nil {
		return model.ContentMetadata{}, err
	}
	return c, nil
}

// RewireParentOnUpdate implements the parent-pointer rewiring performed by
// UpdateContent: writes newContent, rewrites every child of oldKey to
// point at newContent's id, and moves the children set in the reverse index.
// oldKey's row is left in place; deletion only happens via garbage
// collection.
func RewireParentOnUpdate(txn *storage.Txn, idx *reverse.Indexes, oldKey ids.ContentId, newContent model.ContentMetadata) error {
	if err := PutContent(txn, newContent); err != nil {
		return err
	}

	for _, child := range idx.ContentChildren.Get(oldKey) {
		childRow, ok, err := GetContent(txn, child)
		if err != nil {
			return err
		}
		if !ok {
			return cerrors.NewDatabaseError("child content %s not found while rewiring parent", child)
		}
		childRow.ParentID = newContent.ID
		if err := PutContent(txn, childRow); err != nil {
			return err
		}
	}

	idx.ContentChildren.MoveChildren(oldKey, newContent.ID)
	idx.RemoveContentByNamespace(newContent.Namespace, oldKey)
	idx.InsertContentByNamespace(newContent.Namespace, newContent.ID)
	return nil
}

// TombstonePropagate sets tombstoned = true on every root and every
// descendant reachable from it through content_children, breadth-first, all
// within txn. The traversal is structural: it visits tombstoned
// descendants too, so re-tombstoning is idempotent.
func TombstonePropagate(txn *storage.Txn, idx *reverse.Indexes, roots []ids.ContentId) error {
	queue := append([]ids.ContentId(nil), roots...)
	visited := make(map[string]struct{}, len(roots))

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		key := node.Key()
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}

		row, ok, err := GetContent(txn, node)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		row.Tombstoned = true
		if err := PutContent(txn, row); err != nil {
			return err
		}

		queue = append(queue, idx.ContentChildren.Get(node)...)
	}
	return nil
}

// DeleteOnGCFinish deletes the row at contentID's latest version and removes
// the edge from parentContentID's latest version to it in the reverse index
// ("delete on GC finish").
func DeleteOnGCFinish(txn *storage.Txn, idx *reverse.Indexes, contentID, parentContentID string) error {
	latest, err := ResolveLatestVersion(txn, contentID)
	if err != nil {
		return err
	}
	if latest == 0 {
		return cerrors.NewDatabaseError("content %s not found", contentID)
	}
	target := ids.ContentId{ID: contentID, Version: latest}

	if err := txn.Delete(storage.ContentTable, target.Key()); err != nil {
		return err
	}

	if parentContentID != "" {
		parentLatest, err := ResolveLatestVersion(txn, parentContentID)
		if err != nil {
			return err
		}
		if parentLatest > 0 {
			idx.ContentChildren.Remove(ids.ContentId{ID: parentContentID, Version: parentLatest}, target)
		}
	}
	contentLogger := log.WithContentID(target.Key())
	contentLogger.Debug().Msg("deleted content version")
	return nil
}
