package parser

import "testing"

func TestClassifyFile(t *testing.T) {
	cases := map[string]Type{
		"api.proto":          TypeContract,
		"schema.graphql":     TypeContract,
		"openapi.yaml":       TypeContract,
		"swagger.json":       TypeContract,
		"config.json":        TypeConfig,
		"values.yaml":        TypeConfig,
		".env":               TypeConfig,
		".env.production":    TypeConfig,
		"settings.toml":      TypeConfig,
		"README.md":          TypeDocs,
		"guide.rst":          TypeDocs,
		"main.go":            TypeCode,
		"index.ts":           TypeCode,
		"unknown.xyz":        TypeUnknown,
	}
	for path, want := range cases {
		if got := ClassifyFile(path); got != want {
			t.Errorf("ClassifyFile(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestParseCode_BoundaryDetection(t *testing.T) {
	src := `package foo

import "fmt"

func Alpha() {
	fmt.Println("a")
}

func Beta() {
	fmt.Println("b")
}
`
	chunks := Parse("foo.go", src)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks from 2 function boundaries, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.StartLine > c.EndLine {
			t.Errorf("chunk has StartLine %d > EndLine %d", c.StartLine, c.EndLine)
		}
	}
	if chunks[0].Imports == nil {
		t.Errorf("expected first chunk to carry file-level imports")
	}
}

func TestParseCode_FallsBackToLineBuckets(t *testing.T) {
	src := "just a plain script with no recognizable boundaries\nline two\nline three\n"
	chunks := Parse("script.sh", src)
	// .sh isn't in codeExt, so classify as unknown and parse yields nothing.
	if chunks != nil {
		t.Errorf("expected unknown extension to yield no chunks, got %d", len(chunks))
	}
}

func TestParseCode_DiscardsTinyChunks(t *testing.T) {
	src := "func A(){}\nfunc B(){}\n"
	chunks := Parse("tiny.go", src)
	for _, c := range chunks {
		if nonWhitespaceLen(c.Content) < minContentRunes {
			t.Errorf("chunk %q should have been discarded for being under the minimum", c.Content)
		}
	}
}

func TestParseConfig_JSONPerTopLevelKey(t *testing.T) {
	src := `{"alpha": 1, "beta": {"nested": true}}`
	chunks := Parse("config.json", src)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks (one per top-level key), got %d", len(chunks))
	}
	if chunks[0].Symbols[0] != "alpha" || chunks[1].Symbols[0] != "beta" {
		t.Errorf("expected key order alpha,beta, got %v %v", chunks[0].Symbols, chunks[1].Symbols)
	}
}

func TestParseConfig_YAMLZeroIndent(t *testing.T) {
	src := "alpha:\n  nested: 1\nbeta:\n  other: 2\n"
	chunks := Parse("config.yaml", src)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 top-level-key chunks, got %d", len(chunks))
	}
}

func TestParseConfig_EnvBlocks(t *testing.T) {
	src := "FOO=1\nBAR=2\n\nBAZ=3\n"
	chunks := Parse(".env", src)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 blank-line-separated blocks, got %d", len(chunks))
	}
	if len(chunks[0].Symbols) != 2 || chunks[0].Symbols[0] != "FOO" || chunks[0].Symbols[1] != "BAR" {
		t.Errorf("expected symbols [FOO BAR] in first block, got %v", chunks[0].Symbols)
	}
}

func TestParseDocs_MarkdownHeadings(t *testing.T) {
	src := "# Title\n\nintro text that is long enough\n\n## Section\n\nmore content here as well\n"
	chunks := Parse("doc.md", src)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 heading-delimited chunks, got %d", len(chunks))
	}
	if chunks[0].Symbols[0] != "Title" || chunks[1].Symbols[0] != "Section" {
		t.Errorf("unexpected heading symbols: %v %v", chunks[0].Symbols, chunks[1].Symbols)
	}
}

func TestParseContract_Proto(t *testing.T) {
	src := "syntax = \"proto3\";\n\nmessage Foo {\n  string bar = 1;\n}\n\nservice Svc {\n  rpc Get(Foo) returns (Foo);\n}\n"
	chunks := Parse("api.proto", src)
	if len(chunks) != 2 {
		t.Fatalf("expected message+service chunks, got %d", len(chunks))
	}
}
