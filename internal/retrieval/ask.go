package retrieval

import (
	"context"
	"fmt"
	"strings"

	"knowledgecore/internal/llm"
	"knowledgecore/internal/reliability"
)

const (
	askCandidateK   = 24
	askFinalK       = 8
	askTemperature  = 0.3
	askMaxTokens    = 2048
)

const askSystemPrompt = "You are a codebase assistant. Answer the question using only the provided context blocks. " +
	"Cite the file each fact came from. If the context doesn't contain the answer, say so plainly rather than guessing."

// AskResponse is /ask's return shape.
type AskResponse struct {
	Answer  string   `json:"answer"`
	Sources []Result `json:"sources"`
}

// Ask implements /ask: semantic search 24 candidates, boost/dedup, keep the
// top 8, build a file+content prompt, and call the LLM at temperature 0.3
// with a 2048 maxTokens budget.
func (e *Engine) Ask(ctx context.Context, collection, question string) (AskResponse, error) {
	vec, err := e.embed(ctx, question)
	if err != nil {
		return AskResponse{}, err
	}
	hits, err := e.search(ctx, collection, vec, askCandidateK, nil, 0)
	if err != nil {
		return AskResponse{}, err
	}
	top := boostDedupTrim(resultsFrom(hits), askFinalK)
	if e.LLM == nil {
		return AskResponse{}, reliability.New(reliability.KindUnavailable, "no LLM provider configured", nil)
	}

	prompt := buildContextPrompt(top, question)
	msg, err := e.chat(ctx, askSystemPrompt, prompt)
	if err != nil {
		return AskResponse{}, err
	}
	return AskResponse{Answer: msg, Sources: top}, nil
}

func buildContextPrompt(results []Result, question string) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "File: %s\n%s\n\n", r.File, r.Content)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

// chat runs a single-turn LLM call behind the "llm" breaker. The shared
// llm.Provider interface fixes maxTokens/temperature at client construction
// (see internal/llm/anthropic.New, internal/llm/openai.New) rather than
// exposing them per call; askTemperature/askMaxTokens document the values a
// provider should be constructed with for /ask, /explain and /find-feature,
// the same way the teacher's callers configure a client once per endpoint
// family rather than per request.
func (e *Engine) chat(ctx context.Context, system, user string) (string, error) {
	var out string
	err := e.Breakers.Get("llm").Execute(func() error {
		msgs := []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		}
		resp, err := e.LLM.Chat(ctx, msgs, nil, "")
		if err != nil {
			return reliability.New(reliability.KindUpstream, "llm chat failed", err)
		}
		out = resp.Content
		return nil
	})
	return out, err
}
