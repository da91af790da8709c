// Command vintner drives wine label batches through upload, OCR, candidate
// matching, operator corrections, and publishing to storage and catalog
// backends. Each subcommand is one stage trigger; the batch persists between
// invocations in a local SQLite store.
package main
