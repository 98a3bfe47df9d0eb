// Package tui renders live progress of a generation run in the terminal.
// It implements a driving adapter following hexagonal architecture
// principles: the pipeline reports domain events and this package only
// draws them.
package tui
