// Package parser implements the parser registry (SPEC_FULL.md component A):
// classifyFile routes a path to one of {contract, config, docs, code}, and
// each format's Parse produces ParsedChunks carrying symbols, imports, and
// line spans, the unit every vector collection is built from.
package parser

import (
	"path/filepath"
	"strings"
)

// Type is a ParsedChunk's payload type, per spec.md §3.
type Type string

const (
	TypeCode     Type = "code"
	TypeConfig   Type = "config"
	TypeDocs     Type = "docs"
	TypeContract Type = "contract"
	TypeUnknown  Type = "unknown"
)

// ParsedChunk is the unit written to vector collections (spec.md §3).
// Invariant: StartLine <= EndLine; Content has >= 10 non-whitespace chars
// (shorter chunks are dropped by the registry before being returned).
type ParsedChunk struct {
	Content   string
	StartLine int
	EndLine   int
	Language  string
	Type      Type
	Symbols   []string
	Imports   []string
	Metadata  map[string]string
}

// minContentRunes is the non-whitespace character floor a chunk must clear
// to survive, per spec.md §3's ParsedChunk invariant.
const minContentRunes = 10

func nonWhitespaceLen(s string) int {
	n := 0
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		n++
	}
	return n
}

// contractExt/configExt/docsExt classify by extension; basename overrides
// (.env, Dockerfile-style names) are checked first by ClassifyFile.
var (
	contractExt = map[string]bool{".proto": true, ".graphql": true, ".gql": true}
	configExt   = map[string]bool{
		".json": true, ".yaml": true, ".yml": true, ".toml": true,
		".ini": true, ".hcl": true, ".cfg": true, ".conf": true,
	}
	docsExt = map[string]bool{".md": true, ".mdx": true, ".rst": true, ".markdown": true}
	codeExt = map[string]bool{
		".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
		".py": true, ".go": true, ".rs": true, ".java": true, ".rb": true,
		".c": true, ".h": true, ".cc": true, ".cpp": true, ".hpp": true, ".cs": true,
	}
)

// ClassifyFile routes by extension/basename in priority order contract →
// config → docs → code, per spec.md §4.A.
func ClassifyFile(path string) Type {
	base := strings.ToLower(filepath.Base(path))
	ext := strings.ToLower(filepath.Ext(path))

	if isOpenAPIName(base) {
		return TypeContract
	}
	if contractExt[ext] {
		return TypeContract
	}
	if base == ".env" || strings.HasPrefix(base, ".env.") {
		return TypeConfig
	}
	if configExt[ext] {
		return TypeConfig
	}
	if docsExt[ext] {
		return TypeDocs
	}
	if codeExt[ext] {
		return TypeCode
	}
	return TypeUnknown
}

func isOpenAPIName(base string) bool {
	if !strings.HasSuffix(base, ".yaml") && !strings.HasSuffix(base, ".yml") && !strings.HasSuffix(base, ".json") {
		return false
	}
	stem := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml"), ".json")
	return stem == "openapi" || stem == "swagger" || strings.HasPrefix(stem, "openapi.") || strings.HasPrefix(stem, "swagger.")
}

// languageFromExt maps an extension to the language tag chunks carry.
func languageFromExt(ext string) string {
	switch ext {
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".py":
		return "python"
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".c", ".h":
		return "c"
	case ".cc", ".cpp", ".hpp":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".ini":
		return "ini"
	case ".hcl":
		return "hcl"
	case ".md", ".mdx", ".markdown":
		return "markdown"
	case ".rst":
		return "rst"
	case ".proto":
		return "protobuf"
	case ".graphql", ".gql":
		return "graphql"
	default:
		return ""
	}
}

// Parse routes filePath to the matching format parser and filters the
// result down to chunks clearing the minimum-content floor. A parse
// failure never aborts indexing: callers log and skip per spec.md §4.A's
// error policy; Parse itself never returns an error for that reason — an
// unparseable file simply yields zero chunks.
func Parse(filePath, content string) []ParsedChunk {
	typ := ClassifyFile(filePath)
	base := strings.ToLower(filepath.Base(filePath))
	ext := strings.ToLower(filepath.Ext(filePath))
	lang := languageFromExt(ext)

	var chunks []ParsedChunk
	switch typ {
	case TypeContract:
		chunks = parseContract(content, base, lang)
	case TypeConfig:
		chunks = parseConfig(content, base, lang)
	case TypeDocs:
		chunks = parseDocs(content, ext, lang)
	case TypeCode:
		chunks = parseCode(content, ext, lang)
	default:
		return nil
	}

	out := make([]ParsedChunk, 0, len(chunks))
	for _, c := range chunks {
		if nonWhitespaceLen(c.Content) < minContentRunes {
			continue
		}
		if c.Type == "" {
			c.Type = typ
		}
		if c.Language == "" {
			c.Language = lang
		}
		out = append(out, c)
	}
	return out
}

// lineCount returns how many '\n'-delimited lines s spans, used to compute
// StartLine/EndLine from a byte offset.
func lineOf(content string, byteOffset int) int {
	if byteOffset > len(content) {
		byteOffset = len(content)
	}
	return strings.Count(content[:byteOffset], "\n") + 1
}
