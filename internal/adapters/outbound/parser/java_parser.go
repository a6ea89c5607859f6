package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/layerforge/layerforge/internal/domain"
)

var (
	packageRe     = regexp.MustCompile(`(?m)^\s*package\s+([\w.]+)\s*;?`)
	importRe      = regexp.MustCompile(`(?m)^\s*import\s+(?:static\s+)?([\w.*]+)(?:\s+as\s+\w+)?\s*;?`)
	annotationRe  = regexp.MustCompile(`@([A-Za-z_][\w.]*)`)
	typeDeclRe    = regexp.MustCompile(`(?m)^[ \t]*((?:@[\w.]+(?:\([^)]*\))?\s*)*)(?:(?:public|protected|private|abstract|final|static|sealed|open|data|internal|inner|non-sealed)\s+)*(class|interface|enum|record|object|@interface)\s+([A-Za-z_]\w*)`)
	javaMethodRe  = regexp.MustCompile(`(?m)^[ \t]*public\s+(?:(?:static|final|synchronized|abstract|default)\s+)*(?:<[^>]+>\s+)?[\w.<>\[\], ?]+\s+([a-z_]\w*)\s*\(`)
	ifaceMethodRe = regexp.MustCompile(`(?m)^[ \t]*(?:(?:public|default|static|abstract)\s+)*(?:<[^>]+>\s+)?[\w.<>\[\], ?]+\s+([a-z_]\w*)\s*\([^)]*\)\s*(?:throws\s+[\w., ]+)?[;{]`)
	kotlinFunRe   = regexp.MustCompile(`(?m)^[ \t]*(?:(?:override|open|suspend|inline|operator|public)\s+)*fun\s+(?:<[^>]+>\s+)?([a-z_]\w*)\s*\(`)
)

// JavaParser extracts a SourceUnit from Java and Kotlin files. It reads the
// package, imports, the first top-level type, its annotations and its public
// methods. It does not build a full syntax tree.
type JavaParser struct{}

func NewJavaParser() *JavaParser { return &JavaParser{} }

func (p *JavaParser) AnalyzeFile(filePath string) (*domain.SourceUnit, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}
	lang := "java"
	if strings.EqualFold(filepath.Ext(filePath), ".kt") {
		lang = "kotlin"
	}
	return ParseJVMSource(filePath, lang, string(data)), nil
}

// ParseJVMSource extracts a SourceUnit from Java or Kotlin source text.
func ParseJVMSource(filePath, lang, src string) *domain.SourceUnit {
	code := stripComments(src)
	unit := &domain.SourceUnit{Path: filePath, Language: lang}

	if m := packageRe.FindStringSubmatch(code); m != nil {
		unit.Namespace = m[1]
	}
	for _, m := range importRe.FindAllStringSubmatch(code, -1) {
		unit.Imports = append(unit.Imports, m[1])
	}

	if m := typeDeclRe.FindStringSubmatchIndex(code); m != nil {
		unit.Kind = code[m[4]:m[5]]
		unit.TypeName = code[m[6]:m[7]]
		prefix := code[m[2]:m[3]]
		// Annotations may sit on lines above the matched declaration line.
		prefix = precedingAnnotations(code[:m[0]]) + prefix
		for _, a := range annotationRe.FindAllStringSubmatch(prefix, -1) {
			unit.Annotations = append(unit.Annotations, simpleName(a[1]))
		}
		body := code[m[1]:]
		re := javaMethodRe
		switch {
		case lang == "kotlin":
			re = kotlinFunRe
		case unit.Kind == "interface":
			re = ifaceMethodRe
		}
		seen := make(map[string]bool)
		for _, mm := range re.FindAllStringSubmatch(body, -1) {
			if name := mm[1]; !seen[name] && !javaKeywords[name] {
				seen[name] = true
				unit.Methods = append(unit.Methods, name)
			}
		}
	}
	if unit.TypeName == "" {
		base := filepath.Base(filePath)
		unit.TypeName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return unit
}

// precedingAnnotations returns the trailing run of annotation-only lines in s.
func precedingAnnotations(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			if i == len(lines)-1 {
				continue
			}
			break
		}
		if !strings.HasPrefix(line, "@") && !strings.HasPrefix(line, ")") && !strings.HasSuffix(line, ",") {
			break
		}
		out = append([]string{line}, out...)
	}
	return strings.Join(out, "\n")
}

// stripComments removes line and block comments outside string and char
// literals. Block comments keep their newlines so line anchors still match.
func stripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	for i := 0; i < len(src); {
		rest := src[i:]
		switch {
		case strings.HasPrefix(rest, `"""`):
			end := len(src)
			if j := strings.Index(src[i+3:], `"""`); j >= 0 {
				end = i + 3 + j + 3
			}
			b.WriteString(src[i:end])
			i = end
		case src[i] == '"' || src[i] == '\'':
			end := literalEnd(src, i)
			b.WriteString(src[i:end])
			i = end
		case strings.HasPrefix(rest, "//"):
			if j := strings.IndexByte(rest, '\n'); j >= 0 {
				i += j
			} else {
				i = len(src)
			}
		case strings.HasPrefix(rest, "/*"):
			end := len(src)
			if j := strings.Index(src[i+2:], "*/"); j >= 0 {
				end = i + 2 + j + 2
			}
			b.WriteString(strings.Repeat("\n", strings.Count(src[i:end], "\n")))
			i = end
		default:
			b.WriteByte(src[i])
			i++
		}
	}
	return b.String()
}

// literalEnd returns the index just past the quoted literal starting at i.
// An unterminated literal ends at the line break.
func literalEnd(src string, i int) int {
	q := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case q:
			return j + 1
		case '\n':
			return j
		}
	}
	return len(src)
}

func simpleName(qualified string) string {
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

var javaKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true, "return": true, "new": true,
}
