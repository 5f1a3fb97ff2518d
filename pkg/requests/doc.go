/*
Package requests defines the update request envelope and its payload
variants. A Request is always built the same way: marshal the concrete
payload struct to JSON, stash it in Payload alongside the Op tag, and hand
the whole Request to the FSM. pkg/fsm owns the actual dispatch switch; this
package only owns the shapes and the marshal/unmarshal helpers for them.
*/
package requests
