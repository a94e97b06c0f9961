package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/jatlaoui/ines/internal/stages"
	"github.com/jatlaoui/ines/internal/workflow"
)

// RegisterAll registers the story pipeline workflow and every stage activity
// with the Temporal worker. It must be called once during worker startup,
// before the worker runs; registration is not thread-safe.
func RegisterAll(w sdkworker.Worker, acts *stages.Activities) {
	w.RegisterWorkflow(workflow.StoryPipelineWorkflow)

	w.RegisterActivity(acts.AnalyzeTranscript)
	w.RegisterActivity(acts.InferContext)
	w.RegisterActivity(acts.BuildBlueprint)
	w.RegisterActivity(acts.ComposeUnits)
	w.RegisterActivity(acts.PolishStory)
	w.RegisterActivity(acts.ExportStory)
	w.RegisterActivity(acts.ArchiveTask)
}
