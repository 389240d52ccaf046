package parser

import "testing"

func TestExtractEdges_ESImports(t *testing.T) {
	src := "import { foo } from './sibling';\nimport bar from '../other/mod';\nimport react from 'react';\n"
	edges := ExtractEdges(src, "src/pkg/file.ts")
	if len(edges) != 3 {
		t.Fatalf("expected 3 import edges, got %d: %+v", len(edges), edges)
	}
	var sawRelative, sawExternal bool
	for _, e := range edges {
		if e.ToFile == "src/pkg/sibling.ts" {
			sawRelative = true
		}
		if e.ToFile == "react" {
			sawExternal = true
		}
	}
	if !sawRelative {
		t.Errorf("expected relative import resolved against owning dir with .ts appended, got %+v", edges)
	}
	if !sawExternal {
		t.Errorf("expected external specifier kept verbatim, got %+v", edges)
	}
}

func TestExtractEdges_GoImportBlock(t *testing.T) {
	src := "package foo\n\nimport (\n\t\"fmt\"\n\t\"knowledgecore/internal/parser\"\n)\n"
	edges := ExtractEdges(src, "internal/x/file.go")
	if len(edges) != 2 {
		t.Fatalf("expected 2 import edges from the import block, got %d", len(edges))
	}
}

func TestExtractEdges_PythonInheritance(t *testing.T) {
	src := "class Dog(Animal, Loud):\n    pass\n\nclass Cat(object):\n    pass\n"
	edges := ExtractEdges(src, "models.py")
	if len(edges) != 2 {
		t.Fatalf("expected 2 extends edges (Animal, Loud) and none for object, got %d: %+v", len(edges), edges)
	}
	for _, e := range edges {
		if e.ToSymbol == "object" {
			t.Errorf("object base class should have been excluded")
		}
	}
}

func TestExtractEdges_TSInheritance(t *testing.T) {
	src := "class Widget extends Base implements Drawable, Serializable {}\n"
	edges := ExtractEdges(src, "widget.ts")
	var extends, implementsCount int
	for _, e := range edges {
		switch e.EdgeType {
		case EdgeExtends:
			extends++
		case EdgeImplements:
			implementsCount++
		}
	}
	if extends != 1 || implementsCount != 2 {
		t.Errorf("expected 1 extends + 2 implements edges, got %d/%d", extends, implementsCount)
	}
}
