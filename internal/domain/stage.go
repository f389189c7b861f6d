package domain

// StageName enumerates the nine pipeline stage names. Two of them,
// ideation and trend_ingest, are discovery-only pseudo-stages that never
// run under the worker pool model (both run on the supervisor's discovery
// tick, not per item); the other seven are worker-dispatched. The
// operator-driven approval watcher has no stage name.
type StageName string

const (
	StageIdeation     StageName = "ideation"
	StageTrendIngest  StageName = "trend_ingest"
	StageScripting    StageName = "scripting"
	StageNarrating    StageName = "narrating"
	StageSourcingClips StageName = "sourcing_clips"
	StageAssembling   StageName = "assembling"
	StageCaptioning   StageName = "captioning"
	StageMetadata     StageName = "metadata"
	StagePublishing   StageName = "publishing"
)

// DurationBucket affects which worker pool a stage is assigned to.
type DurationBucket string

const (
	DurationShort DurationBucket = "short"
	DurationLong  DurationBucket = "long"
)

// OperationClass selects the Resilient Call Layer's two-level timeout and
// retry policy for a stage's outbound calls.
type OperationClass string

const (
	OpHealth     OperationClass = "health"
	OpAPI        OperationClass = "api"
	OpSearch     OperationClass = "search"
	OpGeneration OperationClass = "generation"
	OpDownload   OperationClass = "download"
	OpAuth       OperationClass = "auth"
	OpStream     OperationClass = "stream"
)
