package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseConfig implements spec.md §4.A's config parser: JSON splits one
// chunk per top-level key, YAML splits at zero-indented keys, .env groups
// blank-line-separated blocks collecting variable names into Symbols, and
// every other config format (TOML/INI/HCL/CFG) is a single language-tagged
// chunk.
func parseConfig(content, base, lang string) []ParsedChunk {
	ext := strings.ToLower(extOf(base))
	switch {
	case ext == ".json":
		return parseJSONConfig(content)
	case ext == ".yaml" || ext == ".yml":
		return parseYAMLConfig(content)
	case base == ".env" || strings.HasPrefix(base, ".env."):
		return parseEnvConfig(content)
	default:
		return []ParsedChunk{{Content: content, StartLine: 1, EndLine: lineCountOf(content), Language: lang, Type: TypeConfig}}
	}
}

func extOf(base string) string {
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		return base[i:]
	}
	return ""
}

func lineCountOf(content string) int {
	if content == "" {
		return 1
	}
	return strings.Count(content, "\n") + 1
}

// parseJSONConfig emits one chunk per top-level key, re-serializing the
// key's value for readability. Malformed JSON falls back to a single
// whole-file chunk rather than failing the parse.
func parseJSONConfig(content string) []ParsedChunk {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return []ParsedChunk{{Content: content, StartLine: 1, EndLine: lineCountOf(content), Language: "json", Type: TypeConfig}}
	}
	keys := orderedJSONKeys(content, raw)
	chunks := make([]ParsedChunk, 0, len(raw))
	for _, k := range keys {
		v := raw[k]
		chunks = append(chunks, ParsedChunk{
			Content:  k + ": " + string(v),
			Language: "json",
			Type:     TypeConfig,
			Symbols:  []string{k},
		})
	}
	return chunks
}

var jsonTopKeyRe = regexp.MustCompile(`(?m)^\s*"([^"]+)"\s*:`)

// orderedJSONKeys recovers source order for top-level keys (encoding/json's
// map decode loses it), falling back to map iteration order for any key
// the regex pass misses.
func orderedJSONKeys(content string, raw map[string]json.RawMessage) []string {
	seen := make(map[string]bool, len(raw))
	var ordered []string
	for _, m := range jsonTopKeyRe.FindAllStringSubmatch(content, -1) {
		k := m[1]
		if _, ok := raw[k]; ok && !seen[k] {
			seen[k] = true
			ordered = append(ordered, k)
		}
	}
	for k := range raw {
		if !seen[k] {
			ordered = append(ordered, k)
		}
	}
	return ordered
}

var yamlTopKeyRe = regexp.MustCompile(`(?m)^[A-Za-z0-9_.-]+\s*:`)

// parseYAMLConfig splits at zero-indented ("top-level") keys. Falls back
// to a single chunk if the document doesn't parse as a yaml.Node (used
// only to validate structure, not to drive the split).
func parseYAMLConfig(content string) []ParsedChunk {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return []ParsedChunk{{Content: content, StartLine: 1, EndLine: lineCountOf(content), Language: "yaml", Type: TypeConfig}}
	}
	lines := strings.Split(content, "\n")
	var starts []int
	for i, l := range lines {
		if yamlTopKeyRe.MatchString(l) {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 {
		return []ParsedChunk{{Content: content, StartLine: 1, EndLine: lineCountOf(content), Language: "yaml", Type: TypeConfig}}
	}
	chunks := make([]ParsedChunk, 0, len(starts))
	for i, s := range starts {
		e := len(lines)
		if i+1 < len(starts) {
			e = starts[i+1]
		}
		text := strings.TrimRight(strings.Join(lines[s:e], "\n"), "\n")
		key := strings.TrimSpace(strings.SplitN(lines[s], ":", 2)[0])
		chunks = append(chunks, ParsedChunk{
			Content:   text,
			StartLine: s + 1,
			EndLine:   e,
			Language:  "yaml",
			Type:      TypeConfig,
			Symbols:   []string{key},
		})
	}
	return chunks
}

var envVarRe = regexp.MustCompile(`(?m)^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=`)

// parseEnvConfig groups blank-line-separated blocks, collecting every
// variable name in the block into Symbols.
func parseEnvConfig(content string) []ParsedChunk {
	lines := strings.Split(content, "\n")
	var chunks []ParsedChunk
	var block []string
	startLine := 1
	flush := func(endLine int) {
		text := strings.TrimRight(strings.Join(block, "\n"), "\n")
		if strings.TrimSpace(text) == "" {
			block = nil
			return
		}
		var syms []string
		for _, m := range envVarRe.FindAllStringSubmatch(text, -1) {
			syms = append(syms, m[1])
		}
		chunks = append(chunks, ParsedChunk{
			Content: text, StartLine: startLine, EndLine: endLine,
			Language: "dotenv", Type: TypeConfig, Symbols: syms,
		})
		block = nil
	}
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			flush(i)
			startLine = i + 2
			continue
		}
		if len(block) == 0 {
			startLine = i + 1
		}
		block = append(block, l)
	}
	flush(len(lines))
	return chunks
}
