package models

import (
	"time"

	"github.com/google/uuid"
)

// Canvas is the grouping resource that aggregates all generation jobs
// belonging to one creative session/concept. Created lazily on the first
// submission of a session and reused afterwards.
type Canvas struct {
	ID               uuid.UUID `json:"canvasId"`
	UserID           string    `json:"userId"`
	ProductKnowledge string    `json:"productKnowledge,omitempty"`
	Hook             string    `json:"hook,omitempty"`
	Captions         string    `json:"captions,omitempty"`
	CTA              string    `json:"cta,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// SourceImage is the image a submission is generated from. The original
// bytes are retained across background removal so "use original" can revert.
type SourceImage struct {
	Data         []byte `json:"data"`
	MimeType     string `json:"mimeType"`
	BgRemoved    bool   `json:"bgRemoved"`
	OriginalData []byte `json:"originalData,omitempty"`
	OriginalMime string `json:"originalMime,omitempty"`
}
