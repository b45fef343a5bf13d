// Package health provides composable probes and the liveness/readiness
// handlers served on both listeners.
//
// Probes combine with [All] (AND), [Any] (OR) and [Fixed]. [ErrFunc]
// adapts a plain error getter such as content.Manager.ReadyErr.
// [ShutdownGate] fails readiness during drain so load balancers stop
// routing before in-flight requests finish.
package health
