package domain

// ProgressEvent is one entry in the append-only progress stream a run
// emits. Steps are numbered against TotalSteps for the current candidate;
// delivery is best-effort and never affects the run outcome.
type ProgressEvent struct {
	Step       int    `json:"step"`
	TotalSteps int    `json:"totalSteps"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}
