/*
Package log provides structured logging for the coordinator using zerolog.

The log package wraps zerolog to give every other package in this module a
scoped child logger with JSON or console output, without each package
reaching into zerolog directly.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - zerolog.Logger, set via log.Init()       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Child Loggers                       │          │
	│  │  - WithComponent("fsm")                     │          │
	│  │  - WithExecutorID("ex-1")                   │          │
	│  │  - WithContentID("doc-42::v3")               │          │
	│  │  - WithTaskID("task-7")                     │          │
	│  └──────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	fsmLog := log.WithComponent("fsm")
	fsmLog.Debug().Str("op", "assign_task").Msg("applied request")

	log.WithExecutorID(id).Warn().Msg("tried to decrement running task count below zero")

WithComponent scopes a package's own logger (fsm, statemachine, metrics);
the entity-scoped helpers tag one-off lines about a specific executor,
content version, or task from wherever that entity is being mutated.

# Log levels

Debug is for per-apply tracing (one line per dispatched request variant, one
per GC content delete, one per finished task); Info for lifecycle events
(store opened, snapshot installed); Warn for the saturating-counter clamp
and other recoverable oddities. The core never logs-and-swallows an error —
it returns it, and boundary callers that terminate on a failure record it
with Errorf.

# Do / don't

Do: use WithComponent for each package's entry points, pass *zerolog.Logger
or zerolog.Logger by value down into request handling, use .Err(err) rather
than string-formatting errors into the message.

Don't: log secrets or full content bodies; don't log inside the reverse-index
locks (keep the critical section short).
*/
package log
