// Package workflow implements the durable story pipeline workflow.
//
// StoryPipelineWorkflow coordinates the five phase activities strictly in
// order (analysis, inference, structuring, generation, refinement), then the
// export and archive activities. Control flow and the task record live here;
// all I/O happens in activities. Workflow code uses workflow-safe APIs only:
// workflow.Now for time, version gates for evolution, and deterministic
// input construction.
//
// Failure policy: activities stamp a failure kind onto their application
// errors as the error type. The retry policy retries transient kinds with
// backoff and stops immediately on fatal ones. A failed phase finalizes the
// task record, archives it best-effort, and fails the workflow with the
// phase name and kind. Inference failure never fails the run; the pipeline
// continues with an empty enrichment and a warning.
package workflow
