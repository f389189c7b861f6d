package domain

import "time"

// ArtifactKind enumerates the content an item accumulates as it moves
// through the pipeline.
type ArtifactKind string

const (
	ArtifactScript          ArtifactKind = "script"
	ArtifactNarration       ArtifactKind = "narration"
	ArtifactStockClip       ArtifactKind = "stock_clip"
	ArtifactAssembledVideo  ArtifactKind = "assembled_video"
	ArtifactCaptionedVideo  ArtifactKind = "captioned_video"
	ArtifactMetadataJSON    ArtifactKind = "metadata_json"
)

// Artifact is identified by (ItemID, Kind, Version); an artifact is only
// referenced by an Item once its file exists and its hash is recorded.
type Artifact struct {
	ItemID       string       `json:"item_id"`
	Kind         ArtifactKind `json:"kind"`
	Version      int          `json:"version"`
	Path         string       `json:"path"`
	SizeBytes    int64        `json:"size_bytes"`
	SHA256       string       `json:"sha256"`
	ProducedBy   string       `json:"produced_by"` // stage name
	CreatedAt    time.Time    `json:"created_at"`
}
