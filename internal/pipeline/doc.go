// Package pipeline orchestrates the batch through its stages: upload, OCR,
// candidate matching, and operator corrections. Stage triggers are gated by
// one-shot locks and the cooperative cancel flag; the batch store carries
// state between the CLI invocations that trigger each stage.
package pipeline
