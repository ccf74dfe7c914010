// Package schema gates raw model output before it is trusted as an AnalysisResult.
package schema

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
)

const analysisResultSchema = `{
  "type": "object",
  "required": ["summary", "keyPoints", "insights"],
  "properties": {
    "summary": {"type": "string"},
    "keyPoints": {"type": "array", "items": {"type": "string"}},
    "insights": {"type": "array", "items": {"type": "string"}}
  }
}`

var compiledResultSchema = jsonschema.MustCompileString("analysis_result.json", analysisResultSchema)

// ValidateResponse parses raw model output and checks its structure.
// Unparseable text fails with ErrMalformedResponse; JSON of the wrong shape
// fails with ErrInvalidResponseShape.
func ValidateResponse(raw string) (domain.AnalysisResult, error) {
	payload := []byte(raw)

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrMalformedResponse, "parse completion", err)
	}
	if err := compiledResultSchema.Validate(doc); err != nil {
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrInvalidResponseShape, "validate completion", err)
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.AnalysisResult{}, domain.WrapError(domain.ErrInvalidResponseShape, "decode completion", err)
	}
	result.Notes = dropNull(result.Notes)
	result.Answers = dropNull(result.Answers)
	return result, nil
}

func dropNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
