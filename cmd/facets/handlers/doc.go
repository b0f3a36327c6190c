// Package handlers implements the business logic for the facets CLI
// commands.
//
// Each handler loads the cluster definition, selects a slice of it, wires
// the cloud provider and node store named by the flags, and runs one of
// the orchestration workflows. Collaborators are created through package
// level factory variables so tests can swap them.
package handlers
