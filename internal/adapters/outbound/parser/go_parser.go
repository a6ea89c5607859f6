package parser

import (
	"fmt"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/mod/modfile"

	"github.com/layerforge/layerforge/internal/domain"
	"github.com/layerforge/layerforge/internal/domain/classify"
)

// GoParser extracts a SourceUnit from Go files using go/ast. The namespace is
// the package import path derived from the nearest go.mod.
type GoParser struct {
	mu      sync.Mutex
	modules map[string]goModule // dir -> nearest module
}

type goModule struct {
	dir  string
	path string
}

func NewGoParser() *GoParser {
	return &GoParser{modules: make(map[string]goModule)}
}

func (p *GoParser) AnalyzeFile(filePath string) (*domain.SourceUnit, error) {
	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, filePath, nil, goparser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}

	unit := &domain.SourceUnit{
		Path:      filePath,
		Language:  "go",
		Namespace: p.importPath(filepath.Dir(filePath), file.Name.Name),
	}

	for _, imp := range file.Imports {
		unit.Imports = append(unit.Imports, strings.Trim(imp.Path.Value, `"`))
	}

	for _, cg := range file.Comments {
		for _, c := range cg.List {
			text := strings.TrimPrefix(c.Text, "//")
			if strings.HasPrefix(text, classify.DirectivePrefix) {
				unit.Annotations = append(unit.Annotations, strings.TrimSpace(text))
			}
		}
	}

	var firstExported, firstExportedKind string
	ast.Inspect(file, func(n ast.Node) bool {
		switch decl := n.(type) {
		case *ast.GenDecl:
			for _, spec := range decl.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok || !ts.Name.IsExported() {
					continue
				}
				kind := ""
				switch ts.Type.(type) {
				case *ast.StructType:
					kind = "struct"
				case *ast.InterfaceType:
					kind = "interface"
				}
				if kind != "" && unit.TypeName == "" {
					unit.TypeName, unit.Kind = ts.Name.Name, kind
				}
				if firstExported == "" {
					firstExported, firstExportedKind = ts.Name.Name, "type"
				}
			}
		case *ast.FuncDecl:
			if decl.Name.IsExported() {
				unit.Methods = append(unit.Methods, decl.Name.Name)
			}
		}
		return true
	})
	if unit.TypeName == "" {
		unit.TypeName, unit.Kind = firstExported, firstExportedKind
	}

	return unit, nil
}

// importPath maps dir to its import path using the nearest go.mod above it.
// Without a go.mod the package name stands in.
func (p *GoParser) importPath(dir, pkgName string) string {
	mod, ok := p.moduleFor(dir)
	if !ok {
		return pkgName
	}
	rel, err := filepath.Rel(mod.dir, dir)
	if err != nil || rel == "." {
		return mod.path
	}
	return mod.path + "/" + filepath.ToSlash(rel)
}

func (p *GoParser) moduleFor(dir string) (goModule, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var visited []string
	cur := dir
	for {
		if m, ok := p.modules[cur]; ok {
			p.remember(visited, m)
			return m, m.path != ""
		}
		visited = append(visited, cur)
		if path, ok := readModulePath(filepath.Join(cur, "go.mod")); ok {
			m := goModule{dir: cur, path: path}
			p.remember(visited, m)
			return m, true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			p.remember(visited, goModule{})
			return goModule{}, false
		}
		cur = parent
	}
}

func (p *GoParser) remember(dirs []string, m goModule) {
	for _, d := range dirs {
		p.modules[d] = m
	}
}

// readModulePath returns the module path declared in a go.mod file.
func readModulePath(goMod string) (string, bool) {
	data, err := os.ReadFile(goMod)
	if err != nil {
		return "", false
	}
	path := modfile.ModulePath(data)
	return path, path != ""
}

// ModulePath reads the module path from dir/go.mod.
func ModulePath(dir string) (string, bool) {
	return readModulePath(filepath.Join(dir, "go.mod"))
}
