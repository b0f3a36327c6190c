// Package testing provides test utilities, builders, and fixtures shared by
// the package tests.
//
//   - DefinitionBuilder: fluent builder for cluster definitions
//   - InventoryFixture: a fake cloud pre-populated for common scenarios
//   - MockNodeStore, MockConfirmer, MockBootstrapper: testify mocks
//
// Usage:
//
//	def := testing.NewDefinitionBuilder("gibbon").
//	    WithFacet("web", 3).
//	    Build()
//
//	fixture := testing.NewInventoryFixture()
//	fixture.RunningServers("gibbon", "web", 3)
package testing
