// Package orchestrator runs the boot sequence.
//
// The boot sequence is an operator-declared, linear list of phases. Each phase
// groups units (OS services or containers) that share a criticality level, and
// phases are executed strictly in ordinal order: no phase is dispatched before
// the previous one reached a terminal status.
//
// # Phase lifecycle
//
//	PENDING -> RUNNING -> SUCCEEDED | FAILED
//	PENDING -> SKIPPED
//
// A phase with no units and no commands succeeds immediately. Otherwise its
// commands run first, then its units are started one after another, or
// concurrently when the phase is marked parallel. A phase SUCCEEDS only when
// every unit succeeded and every command exited zero. A failing unit never stops
// its siblings.
//
// # Severity and escalation
//
// After a phase fails the FailureEscalator decides what happens next:
//
//   - CRITICAL: recovery mode is entered and all remaining phases are SKIPPED
//   - DEGRADED: a warning is logged and the boot continues
//   - INFORMATIONAL: the failure is logged and the boot continues
//
// The escalator is the only component allowed to change run-level control flow.
//
// # Cancellation
//
// Cancelling the run context abandons the in-flight phase, which ends FAILED
// without being escalated, and marks every later phase SKIPPED. A new run
// always starts again from phase 1.
//
// # Timing
//
// Every phase, skipped ones included, is recorded in the TimingRecorder so that
// the timing report covers the whole declared sequence.
package orchestrator
