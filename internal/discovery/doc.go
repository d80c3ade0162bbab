// Package discovery wires kernel finders into a registry for one process.
//
// A Session reads the finders file, starts a local, remote or contributed
// finder for each entry, registers them in file order and records registry
// lifecycle events into the sqlite history when it is enabled. Closing the
// session disposes every registration before stopping the finders.
package discovery
