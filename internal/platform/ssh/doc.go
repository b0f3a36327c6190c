// Package ssh runs commands on launched servers over SSH.
//
// The launch orchestrator uses a Bootstrapper to run a server's first
// configuration-management pass once the server answers on its SSH port.
package ssh
