// Package batch defines the item and batch models tracked through the label
// pipeline, the display projection over them, and the SQLite store that
// carries a batch across CLI invocations.
package batch
