// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Workflow code attaches structured fields (instance, entity name, step)
// so a single creation run can be traced across the remote round trips.
//
// Example:
//
//	logger := logging.NewDefault().Named("workflow")
//	logger.Info("create submitted", zap.String("entity", name))
package logging
