/*
Package lineage implements the lineage engine: latest-version resolution,
parent-pointer rewiring, tombstone propagation, content write with parent
attachment, and garbage-collection delete.

Every function here takes a *storage.Txn so its writes participate in
whichever transaction the Apply Engine (pkg/fsm) already opened. The ones
that read or mutate the reverse indexes (RewireParentOnUpdate,
TombstonePropagate, DeleteOnGCFinish) also take a *reverse.Indexes. Nothing in this package calls Commit or Rollback; that is the
caller's job.
*/
package lineage
