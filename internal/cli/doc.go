// Package cli implements the arrmon command-line interface: the monitor
// dashboard, server management, transport preference, and config bootstrap.
package cli
