/*
Package reverse implements the reverse indexes: ten derived, in-memory
collections that make common membership and counting questions cheap
without scanning the persistent store.

Each collection is independently guarded by its own sync.RWMutex — one
mutex per logical piece of state rather than one big lock for the whole
Indexes struct. None of these
collections are themselves persisted; Indexes.Snapshot and Restore let
pkg/snapshot rebuild them from the ten collections carried in a raft
snapshot, and replaying the log through pkg/fsm rebuilds them as well.
Nothing in this module rebuilds them from a scan of the forward indexes.
*/
package reverse
