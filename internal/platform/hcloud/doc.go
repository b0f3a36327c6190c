// Package hcloud implements the cloud.Provider capability on the Hetzner
// Cloud API.
//
// Concepts map as follows:
//
//   - instances are servers, flavors are server types and zones are locations
//   - tags are labels, sanitized by NormalizeTags to the label character set
//   - security groups are firewalls; only CIDR rules can be expressed
//   - addresses are floating IPs
//   - termination protection is delete and rebuild protection
//
// Creation goes through EnsureOperation, which looks the resource up by
// name first, so a retried launch pairs with the server created by the
// failed attempt instead of creating a second one. Deletion goes through
// DeleteOperation, which treats a missing resource as success and retries
// while the resource is locked by a running action.
package hcloud
