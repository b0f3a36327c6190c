// Package provisioning holds what every convergence step shares: the run
// Context, the Observer that reports progress, the Metrics the executor
// records, and the Phase pipeline the orchestrators run.
//
// # Subpackages
//
//   - converge/: idempotent create, tag, attach and destroy operations
//
// # Core Types
//
// Context carries the observer, metrics, timeouts and run id.
// Phase defines a step with Name() and Provision() methods.
package provisioning
