package domain

import "fmt"

// State is an item's position in the pipeline DAG. Terminal
// failure carries the stage it failed in; retryable_error additionally
// carries the earliest resumption time on Item.AfterTS.
type State string

const (
	StatePendingApproval  State = "pending_approval"
	StateApproved         State = "approved"
	StateScripting        State = "scripting"
	StateScripted         State = "scripted"
	StateNarrating        State = "narrating"
	StateNarrated         State = "narrated"
	StateSourcingClips    State = "sourcing_clips"
	StateClipsSourced     State = "clips_sourced"
	StateAssembling       State = "assembling"
	StateAssembled        State = "assembled"
	StateCaptioning       State = "captioning"
	StateCaptioned        State = "captioned"
	StateMetadataPending  State = "metadata_pending"
	StateMetadataReady    State = "metadata_ready"
	StatePublishing       State = "publishing"
	StatePublished        State = "published"
	stateFailedPrefix     State = "failed"
	stateRetryablePrefix  State = "retryable_error"
)

// Failed builds the parameterized terminal-failure state for a stage.
func Failed(stage string) State {
	return State(fmt.Sprintf("%s(%s)", stateFailedPrefix, stage))
}

// RetryableError builds the parameterized retryable state for a stage.
func RetryableError(stage string) State {
	return State(fmt.Sprintf("%s(%s)", stateRetryablePrefix, stage))
}

func (s State) IsTerminal() bool {
	return s == StatePublished || s.IsFailed()
}

func (s State) IsFailed() bool {
	return len(s) >= len(stateFailedPrefix) && s[:len(stateFailedPrefix)] == stateFailedPrefix
}

func (s State) IsRetryable() bool {
	return len(s) >= len(stateRetryablePrefix) && s[:len(stateRetryablePrefix)] == stateRetryablePrefix
}
