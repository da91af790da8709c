// Package labelapi wraps the upload, OCR, compare, and health endpoints of
// the label-processing backend.
//
// Responses are keyed by filename rather than item id; the client only
// normalizes shapes, leaving the filename-to-item correlation to
// internal/correlate. Each call carries an independent timeout and a timeout
// fails like any other network error.
package labelapi
