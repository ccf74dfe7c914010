package domain

import (
	"encoding/json"
	"time"
)

type AnalysisStatus string

const (
	AnalysisFinal     AnalysisStatus = "final"
	AnalysisDiscarded AnalysisStatus = "discarded"
)

// AnalysisResult is the validated structured output of the model.
// Notes and Answers are passed through verbatim.
type AnalysisResult struct {
	Summary   string          `json:"summary"`
	KeyPoints []string        `json:"keyPoints"`
	Insights  []string        `json:"insights"`
	Notes     json.RawMessage `json:"notes,omitempty"`
	Answers   json.RawMessage `json:"answers,omitempty"`
}

type Analysis struct {
	ID            string         `json:"id"`
	DocumentID    string         `json:"document_id"`
	UserPrompt    *string        `json:"user_prompt,omitempty"`
	Status        AnalysisStatus `json:"status"`
	PromptVersion string         `json:"prompt_version"`
	Result        AnalysisResult `json:"result"`
	CreatedAt     time.Time      `json:"created_at"`
}

// AnalysisFinalizedEvent is published after a new final analysis is stored.
type AnalysisFinalizedEvent struct {
	AnalysisID    string    `json:"analysis_id"`
	DocumentID    string    `json:"document_id"`
	OwnerID       string    `json:"owner_id"`
	PromptVersion string    `json:"prompt_version"`
	FinalizedAt   time.Time `json:"finalized_at"`
}

// ReanalysisRequest asks a worker to analyze a stored document again.
type ReanalysisRequest struct {
	DocumentID  string    `json:"document_id"`
	OwnerID     string    `json:"owner_id"`
	UserPrompt  string    `json:"user_prompt,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// AnalysisSettings are the pipeline knobs fixed at startup.
type AnalysisSettings struct {
	PromptVersion     string
	Model             string
	Temperature       *float64
	CompletionTimeout time.Duration
}
