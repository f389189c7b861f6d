// Package statemachine owns the per-item state DAG: the
// allowed forward transitions, the three-step commit (artifact finalize →
// local state → dashboard), and startup reconciliation between the local
// state store and the dashboard row.
package statemachine

import (
	"github.com/shortforge/contentpipe/internal/dashboard"
	"github.com/shortforge/contentpipe/internal/domain"
	"github.com/shortforge/contentpipe/internal/pipelineerr"
)

// Transition describes one edge of the stage DAG: the state an item must
// be in for the stage to be eligible, the state it occupies while the
// stage's worker holds it, and the state it reaches on success.
type Transition struct {
	Stage        domain.StageName
	EntryState   domain.State
	RunningState domain.State
	SuccessState domain.State
}

// StageOrder is the strict linear sequence a worker-dispatched item moves
// through once approved. Ideation, trend-ingest, and approval are discovery-time
// concerns, not worker-dispatched stages, and are absent here.
var StageOrder = []domain.StageName{
	domain.StageScripting,
	domain.StageNarrating,
	domain.StageSourcingClips,
	domain.StageAssembling,
	domain.StageCaptioning,
	domain.StageMetadata,
	domain.StagePublishing,
}

var transitionsByEntryState = map[domain.State]Transition{
	domain.StateApproved: {
		Stage: domain.StageScripting, EntryState: domain.StateApproved,
		RunningState: domain.StateScripting, SuccessState: domain.StateScripted,
	},
	domain.StateScripted: {
		Stage: domain.StageNarrating, EntryState: domain.StateScripted,
		RunningState: domain.StateNarrating, SuccessState: domain.StateNarrated,
	},
	domain.StateNarrated: {
		Stage: domain.StageSourcingClips, EntryState: domain.StateNarrated,
		RunningState: domain.StateSourcingClips, SuccessState: domain.StateClipsSourced,
	},
	domain.StateClipsSourced: {
		Stage: domain.StageAssembling, EntryState: domain.StateClipsSourced,
		RunningState: domain.StateAssembling, SuccessState: domain.StateAssembled,
	},
	domain.StateAssembled: {
		Stage: domain.StageCaptioning, EntryState: domain.StateAssembled,
		RunningState: domain.StateCaptioning, SuccessState: domain.StateCaptioned,
	},
	domain.StateCaptioned: {
		Stage: domain.StageMetadata, EntryState: domain.StateCaptioned,
		RunningState: domain.StateMetadataPending, SuccessState: domain.StateMetadataReady,
	},
	domain.StateMetadataReady: {
		Stage: domain.StagePublishing, EntryState: domain.StateMetadataReady,
		RunningState: domain.StatePublishing, SuccessState: domain.StatePublished,
	},
}

// TransitionForState returns the DAG edge eligible from the item's current
// state, if any. A State with no outgoing edge (terminal, or mid-stage
// running/retryable) returns ok=false: discovery only enqueues items sitting
// in an entry state.
func TransitionForState(s domain.State) (Transition, bool) {
	t, ok := transitionsByEntryState[s]
	return t, ok
}

// TransitionForStage is the reverse lookup, used by stage adapters and the
// scheduler to find the running/success states for the stage they were
// dispatched to run.
func TransitionForStage(stage domain.StageName) (Transition, bool) {
	for _, t := range transitionsByEntryState {
		if t.Stage == stage {
			return t, true
		}
	}
	return Transition{}, false
}

// NextStateOnSuccess is the forward transition applied after a stage
// adapter returns successfully.
func NextStateOnSuccess(t Transition) domain.State {
	return t.SuccessState
}

// NextStateOnError classifies a stage failure into the next state: retryable kinds become retryable_error, non-retryable kinds
// (and exhausted retryable ones) become a terminal failed(stage). A resource
// failure is retried once: its second failed attempt is terminal.
func NextStateOnError(kind pipelineerr.Kind, stage domain.StageName, attempts, maxAttempts int) domain.State {
	if !kind.Retryable() {
		return domain.Failed(string(stage))
	}
	if kind == pipelineerr.KindResource && attempts >= 2 {
		return domain.Failed(string(stage))
	}
	if kind == pipelineerr.KindUnexpected && attempts >= maxAttempts {
		return domain.Failed(string(stage))
	}
	if attempts >= maxAttempts {
		return domain.Failed(string(stage))
	}
	return domain.RetryableError(string(stage))
}

// DashboardStatusFor maps an internal State to the coarse dashboard Status
// column: the operator never sees the fine-grained per-stage
// states, only five labels.
func DashboardStatusFor(s domain.State) dashboard.Status {
	switch {
	case s == domain.StatePendingApproval:
		return dashboard.StatusPendingApproval
	case s == domain.StateApproved:
		return dashboard.StatusApproved
	case s == domain.StatePublished:
		return dashboard.StatusCompleted
	case s.IsFailed():
		return dashboard.StatusFailed
	default:
		return dashboard.StatusInProgress
	}
}

var rankOrder = []domain.State{
	domain.StatePendingApproval,
	domain.StateApproved,
	domain.StateScripting, domain.StateScripted,
	domain.StateNarrating, domain.StateNarrated,
	domain.StateSourcingClips, domain.StateClipsSourced,
	domain.StateAssembling, domain.StateAssembled,
	domain.StateCaptioning, domain.StateCaptioned,
	domain.StateMetadataPending, domain.StateMetadataReady,
	domain.StatePublishing, domain.StatePublished,
}

// rank orders states by how far through the pipeline they represent, used
// by reconciliation to decide which side is "more advanced". A terminal
// failure ranks as fully advanced (nothing to resume); a retryable error
// ranks at the running state of the stage it interrupted, since
// the artifact evidence for that stage is what decides the real position.
func rank(s domain.State) int {
	for i, st := range rankOrder {
		if st == s {
			return i
		}
	}
	if s.IsFailed() {
		return len(rankOrder)
	}
	if s.IsRetryable() {
		if t, ok := TransitionForStage(domain.StageName(interruptedStage(s))); ok {
			for i, st := range rankOrder {
				if st == t.RunningState {
					return i
				}
			}
		}
	}
	return len(rankOrder) // unrecognized/parameterized states sort last
}

// interruptedStage extracts the stage name from a failed(stage) or
// retryable_error(stage) state string.
func interruptedStage(s domain.State) string {
	str := string(s)
	open, close := -1, -1
	for i, r := range str {
		if r == '(' && open == -1 {
			open = i
		}
		if r == ')' {
			close = i
		}
	}
	if open == -1 || close == -1 || close <= open+1 {
		return ""
	}
	return str[open+1 : close]
}

// MoreAdvanced reports whether a is strictly further through the pipeline
// than b.
func MoreAdvanced(a, b domain.State) bool {
	return rank(a) > rank(b)
}
