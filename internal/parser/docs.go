package parser

import (
	"regexp"
	"strings"
)

var atxHeadingRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// parseDocs implements spec.md §4.A's docs parser: Markdown/MDX splits at
// ATX headings with the heading text as Symbols[0]; RST splits at
// underline-marked titles.
func parseDocs(content, ext, lang string) []ParsedChunk {
	if ext == ".rst" {
		return parseRST(content)
	}
	return parseMarkdown(content, lang)
}

func parseMarkdown(content, lang string) []ParsedChunk {
	lines := strings.Split(content, "\n")
	var starts []int
	var headings []string
	for i, l := range lines {
		if m := atxHeadingRe.FindStringSubmatch(l); m != nil {
			starts = append(starts, i)
			headings = append(headings, strings.TrimSpace(m[2]))
		}
	}
	if len(starts) == 0 {
		return []ParsedChunk{{Content: content, StartLine: 1, EndLine: lineCountOf(content), Language: lang, Type: TypeDocs}}
	}
	chunks := make([]ParsedChunk, 0, len(starts)+1)
	if starts[0] > 0 {
		preamble := strings.TrimRight(strings.Join(lines[:starts[0]], "\n"), "\n")
		if strings.TrimSpace(preamble) != "" {
			chunks = append(chunks, ParsedChunk{Content: preamble, StartLine: 1, EndLine: starts[0], Language: lang, Type: TypeDocs})
		}
	}
	for i, s := range starts {
		e := len(lines)
		if i+1 < len(starts) {
			e = starts[i+1]
		}
		text := strings.TrimRight(strings.Join(lines[s:e], "\n"), "\n")
		chunks = append(chunks, ParsedChunk{
			Content: text, StartLine: s + 1, EndLine: e,
			Language: lang, Type: TypeDocs, Symbols: []string{headings[i]},
		})
	}
	return chunks
}

// rstUnderlineRe matches a line made entirely of one repeated punctuation
// rune, RST's section-title underline convention.
var rstUnderlineRe = regexp.MustCompile(`^([=\-~^"'#*+.:]{3,})\s*$`)

func parseRST(content string) []ParsedChunk {
	lines := strings.Split(content, "\n")
	var starts []int
	var titles []string
	for i := 1; i < len(lines); i++ {
		if !rstUnderlineRe.MatchString(lines[i]) {
			continue
		}
		title := strings.TrimSpace(lines[i-1])
		if title == "" {
			continue
		}
		starts = append(starts, i-1)
		titles = append(titles, title)
	}
	if len(starts) == 0 {
		return []ParsedChunk{{Content: content, StartLine: 1, EndLine: lineCountOf(content), Language: "rst", Type: TypeDocs}}
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
			Language: "rst", Type: TypeDocs, Symbols: []string{titles[i]},
		})
	}
	return chunks
}
