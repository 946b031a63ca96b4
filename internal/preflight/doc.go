// Package preflight provides system validation and pre-flight checks
// to ensure the engine can run successfully before starting operations.
//
// The package validates:
//   - Disk space availability (minimum 1GB)
//   - Memory availability (minimum 1GB, checked against a fixed 4GB
//     estimate; system memory is not measured)
//   - Write permissions in project directory
//   - File descriptor limits (minimum 1024)
//
// Configuration is not validated here.
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, "/path/to/project")
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
