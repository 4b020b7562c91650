package llm

import (
	"encoding/json"
	"fmt"

	"github.com/Pland4r/project-ai/internal/analysis"
)

// BuildPrompt renders the analyst prompt for a snapshot
func BuildPrompt(snap analysis.Snapshot) (string, error) {
	metrics, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode metrics: %w", err)
	}

	return fmt.Sprintf(`You are a SaaS growth analyst. Analyze these user metrics:
%s

Provide:
1. Data summary in plain English
2. 3 key observations
3. 2 actionable recommendations
Format: Markdown`, metrics), nil
}
