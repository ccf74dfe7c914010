package domain

import "encoding/json"

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeWarning OutcomeStatus = "warning"
	OutcomeError   OutcomeStatus = "error"
)

// User-facing outcome messages.
const (
	MsgNoFile              = "No file provided"
	MsgNotPDF              = "Only PDF documents are allowed"
	MsgEmptyPDF            = "The provided PDF document is empty"
	MsgPDFTooLarge         = "PDF size exceeds the maximum allowed limit of 10MB"
	MsgExtractionFailed    = "Failed to extract text from the PDF document"
	MsgNoReadableText      = "The document contains no readable text"
	MsgDocumentStoreFailed = "Failed to store the document"
	MsgPromptVersion       = "Unsupported prompt version"
	MsgProviderFailed      = "AI service failed to generate a response"
	MsgMalformedResponse   = "AI returned malformed JSON"
	MsgInvalidShape        = "Invalid AI response structure"
	MsgAnalysisStoreFailed = "Failed to store the analysis"
	MsgDocumentNotFound    = "Document not found"
	MsgDocumentLoadFailed  = "Failed to load the document"
)

// Outcome is the only thing the analysis pipeline ever returns to its caller.
type Outcome struct {
	Status  OutcomeStatus
	Message string
	Result  *AnalysisResult
}

func Success(result AnalysisResult) Outcome {
	return Outcome{Status: OutcomeSuccess, Result: &result}
}

func Warning(message string) Outcome {
	return Outcome{Status: OutcomeWarning, Message: message}
}

func Failure(message string) Outcome {
	return Outcome{Status: OutcomeError, Message: message}
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Status == OutcomeSuccess {
		return json.Marshal(struct {
			Status OutcomeStatus   `json:"status"`
			Data   *AnalysisResult `json:"data"`
		}{Status: o.Status, Data: o.Result})
	}
	return json.Marshal(struct {
		Status  OutcomeStatus `json:"status"`
		Message string        `json:"message"`
	}{Status: o.Status, Message: o.Message})
}
