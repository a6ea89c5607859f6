// Package detector groups scanned source files under the source roots that
// own them.
package detector

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/layerforge/layerforge/internal/domain"
)

// jvmRoots are the conventional Maven and Gradle source directories.
var jvmRoots = []struct {
	segment  string
	language string
}{
	{"src/main/java", "java"},
	{"src/main/kotlin", "kotlin"},
}

// SourceRootDetector implements domain.SourceRootDetector. It supports:
//   - Maven/Gradle: {module}/src/main/java or src/main/kotlin
//   - Go: the directory of the nearest go.mod
//
// Files that fit neither fall into a bare "src" root when one exists, or the
// project root otherwise.
type SourceRootDetector struct{}

func New() *SourceRootDetector {
	return &SourceRootDetector{}
}

func (d *SourceRootDetector) Detect(scan *domain.ScanResult) ([]domain.SourceRoot, error) {
	goMods := goModuleDirs(scan)

	roots := make(map[string]*domain.SourceRoot)
	for _, f := range scan.SourceFiles {
		root, lang, module := resolveRoot(f, goMods)
		r, ok := roots[root]
		if !ok {
			r = &domain.SourceRoot{Path: root, Language: lang, Module: module}
			roots[root] = r
		}
		r.Files = append(r.Files, f)
	}

	out := make([]domain.SourceRoot, 0, len(roots))
	for _, r := range roots {
		sort.Strings(r.Files)
		out = append(out, *r)
	}
	// Larger roots first, so the primary root leads.
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Files) != len(out[j].Files) {
			return len(out[i].Files) > len(out[j].Files)
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

type goModuleDir struct {
	dir  string // relative, "." for the project root
	path string
}

// goModuleDirs reads every go.mod in the scan, deepest directory first.
func goModuleDirs(scan *domain.ScanResult) []goModuleDir {
	var mods []goModuleDir
	for _, gm := range scan.GoModFiles {
		data, err := os.ReadFile(filepath.Join(scan.RootPath, filepath.FromSlash(gm)))
		if err != nil {
			continue
		}
		mods = append(mods, goModuleDir{dir: path.Dir(gm), path: modfile.ModulePath(data)})
	}
	sort.Slice(mods, func(i, j int) bool { return len(mods[i].dir) > len(mods[j].dir) })
	return mods
}

// resolveRoot returns the source root, language and module for one file.
func resolveRoot(file string, goMods []goModuleDir) (root, lang, module string) {
	lang = domain.SourceLanguage(file)
	slashed := "/" + file

	for _, jr := range jvmRoots {
		if i := strings.Index(slashed, "/"+jr.segment+"/"); i >= 0 {
			prefix := dirBefore(slashed, i)
			root = strings.TrimPrefix(prefix+"/"+jr.segment, "/")
			return root, lang, prefix
		}
	}

	if lang == "go" {
		for _, m := range goMods {
			if m.dir == "." || strings.HasPrefix(file, m.dir+"/") {
				return m.dir, lang, m.path
			}
		}
	}

	if i := strings.Index(slashed, "/src/"); i >= 0 {
		return strings.TrimPrefix(dirBefore(slashed, i)+"/src", "/"), lang, ""
	}
	return ".", lang, ""
}

// dirBefore returns the directory preceding the match at i in a
// slash-prefixed path. A match at the project root yields "".
func dirBefore(slashed string, i int) string {
	if i <= 0 {
		return ""
	}
	return slashed[1:i]
}
