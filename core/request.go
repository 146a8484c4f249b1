package core

import (
	"time"

	"github.com/google/uuid"
)

// Modality identifies the kind of content carried by a request.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

// Request is an immutable record of one inbound child message. It is created
// at ingestion and referenced by every downstream artifact via SessionID.
type Request struct {
	ID        string         `json:"id"`
	ChildID   string         `json:"child_id"`
	SessionID string         `json:"session_id"`
	Content   string         `json:"content"`
	Modality  Modality       `json:"modality"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewRequest builds a text request with generated identifiers.
func NewRequest(childID, sessionID, content string) Request {
	return Request{
		ID:        uuid.NewString(),
		ChildID:   childID,
		SessionID: sessionID,
		Content:   content,
		Modality:  ModalityText,
		Timestamp: time.Now().UTC(),
	}
}

// Clone returns a copy of the request with safe map duplication. Requests are
// treated as immutable everywhere else; Clone exists for callers that need to
// attach metadata before ingestion.
func (r Request) Clone() Request {
	clone := r
	if r.Metadata != nil {
		clone.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}
