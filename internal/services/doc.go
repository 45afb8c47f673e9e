// Package services defines shared utilities consumed by the session
// orchestrator and the external service clients.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs and stage names for logging.
//   - Structured error markers plus the Wrap helper that translate stage
//     failures into one of the pipeline's terminal failure kinds.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
