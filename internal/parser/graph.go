package parser

import (
	"path"
	"regexp"
	"strings"
)

// EdgeType is one of the relation kinds a GraphEdge can carry, per
// spec.md §3.
type EdgeType string

const (
	EdgeImports    EdgeType = "imports"
	EdgeCalls      EdgeType = "calls"
	EdgeExtends    EdgeType = "extends"
	EdgeImplements EdgeType = "implements"
	EdgeDependsOn  EdgeType = "depends_on"
)

// GraphEdge is the unit the graph-edge extractor (component B) produces,
// per spec.md §3.
type GraphEdge struct {
	FromFile   string
	FromSymbol string
	ToFile     string
	ToSymbol   string
	EdgeType   EdgeType
}

var (
	esImportRe    = regexp.MustCompile(`import\s*(?:\{[^}]*\}|\*\s+as\s+\w+|\w+)?\s*from\s*['"]([^'"]+)['"]`)
	cjsRequireRe  = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	pyFromImport  = regexp.MustCompile(`(?m)^\s*from\s+([\w.]+)\s+import\s+`)
	pyImport      = regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`)
	goImportBlock = regexp.MustCompile(`(?s)import\s*\(([^)]*)\)`)
	goImportLine  = regexp.MustCompile(`"([^"]+)"`)

	classExtendsRe    = regexp.MustCompile(`class\s+(\w+)\s+extends\s+(\w+)`)
	classImplementsRe = regexp.MustCompile(`class\s+(\w+)[^{]*\bimplements\s+([\w,\s]+)`)
	pyClassBasesRe    = regexp.MustCompile(`class\s+(\w+)\s*\(([^)]*)\)`)
)

// ExtractEdges implements spec.md §4.B: accepts (content, filePath) and
// returns the imports/inheritance edges per-language regex families find.
// Relative specifiers are resolved against filePath's directory; external
// specifiers are kept verbatim. Edges with an empty endpoint are dropped.
func ExtractEdges(content, filePath string) []GraphEdge {
	var edges []GraphEdge
	dir := path.Dir(filePath)
	ext := strings.ToLower(extOf(strings.ToLower(path.Base(filePath))))

	for _, spec := range importSpecifiers(content, ext) {
		to := resolveImportPath(spec, dir, ext)
		edges = append(edges, GraphEdge{FromFile: filePath, ToFile: to, EdgeType: EdgeImports})
	}

	for _, m := range classExtendsRe.FindAllStringSubmatch(content, -1) {
		edges = append(edges, GraphEdge{FromFile: filePath, FromSymbol: m[1], ToSymbol: m[2], EdgeType: EdgeExtends})
	}
	for _, m := range classImplementsRe.FindAllStringSubmatch(content, -1) {
		for _, iface := range strings.Split(m[2], ",") {
			iface = strings.TrimSpace(iface)
			if iface == "" {
				continue
			}
			edges = append(edges, GraphEdge{FromFile: filePath, FromSymbol: m[1], ToSymbol: iface, EdgeType: EdgeImplements})
		}
	}
	for _, m := range pyClassBasesRe.FindAllStringSubmatch(content, -1) {
		for _, base := range strings.Split(m[2], ",") {
			base = strings.TrimSpace(base)
			if base == "" || base == "object" {
				continue
			}
			edges = append(edges, GraphEdge{FromFile: filePath, FromSymbol: m[1], ToSymbol: base, EdgeType: EdgeExtends})
		}
	}

	out := make([]GraphEdge, 0, len(edges))
	for _, e := range edges {
		if e.FromFile == "" || e.ToFile == "" && e.ToSymbol == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

func importSpecifiers(content, ext string) []string {
	var specs []string
	switch ext {
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		for _, m := range esImportRe.FindAllStringSubmatch(content, -1) {
			specs = append(specs, m[1])
		}
		for _, m := range cjsRequireRe.FindAllStringSubmatch(content, -1) {
			specs = append(specs, m[1])
		}
	case ".py":
		for _, m := range pyFromImport.FindAllStringSubmatch(content, -1) {
			specs = append(specs, m[1])
		}
		for _, m := range pyImport.FindAllStringSubmatch(content, -1) {
			specs = append(specs, m[1])
		}
	case ".go":
		for _, block := range goImportBlock.FindAllStringSubmatch(content, -1) {
			for _, m := range goImportLine.FindAllStringSubmatch(block[1], -1) {
				specs = append(specs, m[1])
			}
		}
	}
	return specs
}

// resolveImportPath normalises a relative specifier to a project-root-ish
// path using the owning file's directory, annotating it with the owning
// file's extension when the specifier carries none. External specifiers
// (not starting with "." or "/") are kept verbatim.
func resolveImportPath(spec, dir, ext string) string {
	if !strings.HasPrefix(spec, ".") && !strings.HasPrefix(spec, "/") {
		return spec
	}
	joined := path.Clean(path.Join(dir, spec))
	if ext != "" && extOf(strings.ToLower(path.Base(joined))) == "" {
		joined += ext
	}
	return joined
}
