// Package services defines shared utilities consumed by the remote stage
// clients and the pipeline orchestrator.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper so stage failures carry a
//     consistent classification (network, malformed response, validation,
//     partial batch) all the way to the batch-level error message.
//
// The per-stage HTTP clients live in subpackages (labelapi, drive, catalog);
// they are thin collaborator wrappers, not pipeline logic.
package services
