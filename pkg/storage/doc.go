/*
Package storage implements the persistent store and the forward indexes on
top of bbolt.

Each required column family is one bbolt bucket, created up front by Open.
Rather than a db.Update/db.View callback style, callers here get an explicit
*Txn from Begin and control its lifetime directly — the Apply Engine needs
that control to commit a transaction *before* applying certain in-memory
reverse-index mutations (the RemoveExecutor ordering exception) while
keeping every forward-index write for one log entry inside a single
transaction.

	┌──────────────────── PERSISTENT STORE ─────────────────────┐
	│                                                            │
	│  Store (bbolt.DB)                                         │
	│   ├─ bucket "state_changes"                                │
	│   ├─ bucket "tasks"                                        │
	│   ├─ bucket "gc_tasks"                                     │
	│   ├─ bucket "task_assignments"   (value = encoded id set)  │
	│   ├─ bucket "content"            (key "<id>::v<version>")  │
	│   ├─ bucket "executors"                                    │
	│   ├─ bucket "extractors"                                   │
	│   ├─ bucket "extraction_policies"                          │
	│   ├─ bucket "structured_data_schemas"                      │
	│   ├─ bucket "namespaces"                                   │
	│   ├─ bucket "index_table"                                  │
	│   ├─ bucket "content_extraction_policy_mappings"           │
	│   └─ bucket "coordinator_address"                          │
	│                                                            │
	│  Txn wraps *bolt.Tx: Get/MultiGet/Put/Delete/IteratePrefix/│
	│  ForEach/Commit/Rollback, all scoped to one CF at a time.  │
	└────────────────────────────────────────────────────────────┘
*/
package storage
