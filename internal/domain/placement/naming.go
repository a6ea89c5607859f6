package placement

import (
	"path"
	"strings"
	"unicode"

	"github.com/fatih/camelcase"
	"github.com/layerforge/layerforge/internal/domain"
	"github.com/layerforge/layerforge/internal/domain/classify"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Pascal turns a free-form keyword ("order refund", "order-refund",
// "orderRefund") into a type-name stem ("OrderRefund").
func Pascal(keyword string) string {
	fields := strings.FieldsFunc(keyword, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	title := cases.Title(language.English)
	var b strings.Builder
	for _, f := range fields {
		for _, w := range camelcase.Split(f) {
			b.WriteString(title.String(w))
		}
	}
	if b.Len() == 0 {
		return "Feature"
	}
	out := b.String()
	if r := rune(out[0]); unicode.IsDigit(r) {
		out = "F" + out
	}
	return out
}

// TypeName returns the default type name for a new unit of layer.
func TypeName(layer domain.Layer, keyword string) string {
	stem := Pascal(keyword)
	switch layer {
	case domain.LayerDTO:
		return stem + "Request"
	case domain.LayerEntity:
		return stem
	case domain.LayerDataAccess:
		return stem + "Mapper"
	case domain.LayerDomainService:
		return stem + "DomainService"
	case domain.LayerExternalClient:
		return stem + "Client"
	case domain.LayerApplicationService:
		return stem + "Service"
	case domain.LayerController:
		return stem + "Controller"
	}
	return stem
}

// RequestResponseNames returns the DTO pair for keyword.
func RequestResponseNames(keyword string) (string, string) {
	stem := Pascal(keyword)
	return stem + "Request", stem + "Response"
}

var defaultNamespaceSegments = map[domain.Layer][]string{
	domain.LayerDTO:                {"dto"},
	domain.LayerEntity:             {"entity"},
	domain.LayerDataAccess:         {"mapper"},
	domain.LayerDomainService:      {"domain", "service"},
	domain.LayerExternalClient:     {"feign"},
	domain.LayerApplicationService: {"application", "service"},
	domain.LayerController:         {"interfaces", "rest"},
}

// DefaultNamespace returns the generic namespace for layer under root.
func DefaultNamespace(root string, layer domain.Layer) string {
	return classify.JoinNamespace(root, defaultNamespaceSegments[layer]...)
}

// SuggestPath proposes the project-relative file path for a new type.
func SuggestPath(s *domain.ProjectStructure, namespace, typeName string) string {
	if s != nil && s.Language == "go" {
		return goPath(s, namespace, typeName)
	}
	ext := ".java"
	if s != nil && s.Language == "kotlin" {
		ext = ".kt"
	}
	root := "src/main/java"
	if s != nil {
		for _, r := range s.SourceRoots {
			if strings.HasSuffix(r, "src/main/java") || strings.HasSuffix(r, "src/main/kotlin") {
				root = r
				break
			}
		}
	}
	dir := strings.ReplaceAll(namespace, ".", "/")
	return path.Join(root, dir, typeName+ext)
}

func goPath(s *domain.ProjectStructure, namespace, typeName string) string {
	dir := namespace
	base := s.ModulePath
	if base == "" {
		base = s.RootNamespace
	}
	if base != "" {
		dir = strings.TrimPrefix(strings.TrimPrefix(namespace, base), "/")
	}
	return path.Join(dir, SnakeCase(typeName)+".go")
}

// SnakeCase converts a type name to a Go file-name stem.
func SnakeCase(name string) string {
	words := camelcase.Split(name)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "_")
}
