package provision

// Phase is a step of the per-tool state machine.
type Phase string

const (
	PhasePending        Phase = "pending"
	PhaseDownloading    Phase = "downloading"
	PhaseVerifying      Phase = "verifying"
	PhaseExtracting     Phase = "extracting"
	PhasePostProcessing Phase = "post-processing"
	PhaseDone           Phase = "done"
	PhaseFailed         Phase = "failed"
)

// Reporter observes orchestration progress. Calls arrive from the
// orchestrating goroutine in order.
type Reporter interface {
	ToolStarted(id string)
	PhaseChanged(id string, phase Phase)
	ToolFinished(id string, err error)
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) ToolStarted(string)         {}
func (NopReporter) PhaseChanged(string, Phase) {}
func (NopReporter) ToolFinished(string, error) {}

var _ Reporter = NopReporter{}

// StepReporter is implemented by reporters that also show the named steps
// of the python environment build.
type StepReporter interface {
	StepStarted(step string)
}

func (o *Orchestrator) step(name string) {
	if sr, ok := o.Reporter.(StepReporter); ok {
		sr.StepStarted(name)
	}
}
