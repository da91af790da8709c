// Package drive wraps the storage-publish and account-capability endpoints.
// The pipeline consumes only the boolean linked capability and the publish
// call; the folder structure is surfaced for display.
package drive
