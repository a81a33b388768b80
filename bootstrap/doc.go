// Package bootstrap wires the alertdesk service together: logger, config,
// the search and record-store clients, the draft store, and the API server.
package bootstrap
