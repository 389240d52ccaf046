package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// explainRelatedK is the number of related chunks pulled in before asking
// the LLM to explain a file, per spec.md §4.E.
const explainRelatedK = 3

// ExplainResponse is /explain's structured shape. The LLM is asked to
// return exactly this JSON; on parse failure Explain falls back to a
// minimal response built from the raw completion.
type ExplainResponse struct {
	Summary         string   `json:"summary"`
	Purpose         string   `json:"purpose"`
	KeyComponents   []string `json:"keyComponents"`
	Dependencies    []string `json:"dependencies"`
	PotentialIssues []string `json:"potentialIssues,omitempty"`
}

const explainSystemPrompt = "You explain source files for other engineers. Respond with ONLY a JSON object " +
	`of the shape {"summary":string,"purpose":string,"keyComponents":[string],"dependencies":[string],"potentialIssues":[string]}. ` +
	"No prose outside the JSON."

// Explain implements /explain: optionally search the collection for related
// chunks, then ask the LLM for a structured explanation of fileContent.
func (e *Engine) Explain(ctx context.Context, collection, file, fileContent string) (ExplainResponse, error) {
	if e.LLM == nil {
		return ExplainResponse{}, nil
	}

	var related []Result
	if collection != "" {
		if vec, err := e.embed(ctx, fileContent); err == nil {
			if hits, err := e.search(ctx, collection, vec, explainRelatedK, nil, 0); err == nil {
				related = resultsFrom(hits)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n\n%s\n", file, fileContent)
	if len(related) > 0 {
		b.WriteString("\nRelated context:\n")
		for _, r := range related {
			fmt.Fprintf(&b, "File: %s\n%s\n\n", r.File, r.Content)
		}
	}

	raw, err := e.chat(ctx, explainSystemPrompt, b.String())
	if err != nil {
		return ExplainResponse{}, err
	}

	var out ExplainResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &out); err != nil {
		return ExplainResponse{Summary: raw, KeyComponents: []string{}, Dependencies: []string{}}, nil
	}
	return out, nil
}

// extractJSONObject trims any leading/trailing prose a model adds around
// the JSON object it was asked for, keeping just the outermost braces.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
