package parser

import (
	"regexp"
	"strings"
)

var protoBoundaryRe = regexp.MustCompile(`(?m)^\s*(message|service|enum|rpc)\s+(\w+)`)
var graphqlBoundaryRe = regexp.MustCompile(`(?m)^\s*(type|input|enum|interface|union|scalar|query|mutation|subscription)\s+(\w+)`)
var openapiPathRe = regexp.MustCompile(`(?m)^(\s{0,2})("(/[^"]*)"|(/\S*)):\s*$`)

// parseContract implements spec.md §4.A's contract parser: proto/graphql
// split at their declaration keywords, OpenAPI/Swagger YAML/JSON splits at
// top-level paths.
func parseContract(content, base, lang string) []ParsedChunk {
	ext := strings.ToLower(extOf(base))
	switch {
	case ext == ".proto":
		return splitByRegex(content, protoBoundaryRe, 2, "protobuf")
	case ext == ".graphql" || ext == ".gql":
		return splitByRegex(content, graphqlBoundaryRe, 2, "graphql")
	case isOpenAPIName(base):
		return parseOpenAPI(content, lang)
	default:
		return []ParsedChunk{{Content: content, StartLine: 1, EndLine: lineCountOf(content), Language: lang, Type: TypeContract}}
	}
}

// splitByRegex chunks content at every match of boundaryRe, using capture
// group nameGroup as the chunk's Symbols[0].
func splitByRegex(content string, boundaryRe *regexp.Regexp, nameGroup int, lang string) []ParsedChunk {
	matches := boundaryRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return []ParsedChunk{{Content: content, StartLine: 1, EndLine: lineCountOf(content), Language: lang, Type: TypeContract}}
	}
	chunks := make([]ParsedChunk, 0, len(matches))
	for i, m := range matches {
		start := m[0]
		end := len(content)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		text := strings.TrimRight(content[start:end], "\n")
		name := ""
		if nameGroup*2+1 < len(m) && m[nameGroup*2] >= 0 {
			name = content[m[nameGroup*2]:m[nameGroup*2+1]]
		}
		chunks = append(chunks, ParsedChunk{
			Content: text, StartLine: lineOf(content, start), EndLine: lineOf(content, start) + strings.Count(text, "\n"),
			Language: lang, Type: TypeContract, Symbols: []string{name},
		})
	}
	return chunks
}

// parseOpenAPI splits a YAML/JSON OpenAPI document at its top-level
// `paths:` entries (the `/foo/bar:` keys nested immediately under
// `paths`), since the document's other top-level sections (info,
// components, servers) aren't individually meaningful chunks for this
// registry's purposes.
func parseOpenAPI(content, lang string) []ParsedChunk {
	lines := strings.Split(content, "\n")
	inPaths := false
	var starts []int
	var names []string
	for i, l := range lines {
		trimmed := strings.TrimRight(l, " \t")
		if trimmed == "paths:" {
			inPaths = true
			continue
		}
		if !inPaths {
			continue
		}
		if trimmed != "" && !strings.HasPrefix(trimmed, " ") && !strings.HasPrefix(trimmed, "\"") {
			inPaths = false
			continue
		}
		if m := openapiPathRe.FindStringSubmatch(l); m != nil {
			name := m[3]
			if name == "" {
				name = m[4]
			}
			starts = append(starts, i)
			names = append(names, name)
		}
	}
	if len(starts) == 0 {
		return []ParsedChunk{{Content: content, StartLine: 1, EndLine: lineCountOf(content), Language: lang, Type: TypeContract}}
	}
	chunks := make([]ParsedChunk, 0, len(starts))
	for i, s := range starts {
		e := len(lines)
		if i+1 < len(starts) {
			e = starts[i+1]
		}
		text := strings.TrimRight(strings.Join(lines[s:e], "\n"), "\n")
		chunks = append(chunks, ParsedChunk{
			Content: text, StartLine: s + 1, EndLine: e,
			Language: lang, Type: TypeContract, Symbols: []string{names[i]},
		})
	}
	return chunks
}
