package feedback

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agrimind/farm-assist/internal/types"
)

// stripMarkdownFences removes a surrounding ```json / ``` fence if the model
// wrapped its answer in one despite the instructions.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}

// parseAnalysis decodes the model's JSON answer into a FeedbackAnalysis.
func parseAnalysis(raw string) (*types.FeedbackAnalysis, error) {
	cleaned := stripMarkdownFences(raw)

	var analysis types.FeedbackAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, fmt.Errorf("model response is not valid analysis JSON: %w", err)
	}
	if strings.TrimSpace(analysis.ActualAction) == "" {
		return nil, fmt.Errorf("model response is missing actual_action")
	}
	if analysis.Severity == "" {
		return nil, fmt.Errorf("model response is missing severity")
	}
	if analysis.DeviationType == "" {
		analysis.DeviationType = types.DeviationUnknown
	}
	return &analysis, nil
}
