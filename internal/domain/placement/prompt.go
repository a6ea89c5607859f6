package placement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/layerforge/layerforge/internal/domain"
)

const (
	maxUnitsPerLayer  = 40
	maxMethodsPerUnit = 15
)

// SystemPrompt frames the decision call.
const SystemPrompt = `You are a software architect placing a new feature into an existing layered code base.
You answer with a single JSON object and nothing else.`

// BuildPrompt serializes the structure's per-layer summaries and the feature
// into the decision request.
func BuildPrompt(s *domain.ProjectStructure, f domain.FeatureRequest) string {
	var b strings.Builder
	b.WriteString("Feature request\n")
	fmt.Fprintf(&b, "  keyword: %s\n", f.Keyword)
	if f.Route != "" {
		fmt.Fprintf(&b, "  route: %s\n", f.Route)
	}
	fmt.Fprintf(&b, "  description: %s\n", strings.TrimSpace(f.Description))
	writeParameters(&b, f.Parameters)

	b.WriteString("\nProject structure\n")
	fmt.Fprintf(&b, "  root namespace: %s\n", orDefault(rootNamespace(s), "(unknown)"))
	for _, layer := range domain.LayerOrder {
		units := s.UnitsFor(layer)
		fmt.Fprintf(&b, "  %s (%d units)\n", layer, len(units))
		for i, u := range units {
			if i == maxUnitsPerLayer {
				fmt.Fprintf(&b, "    ... %d more\n", len(units)-i)
				break
			}
			fmt.Fprintf(&b, "    - %s [%s]", u.TypeName, u.Namespace)
			if len(u.Methods) > 0 {
				methods := u.Methods
				if len(methods) > maxMethodsPerUnit {
					methods = methods[:maxMethodsPerUnit]
				}
				fmt.Fprintf(&b, " methods: %s", strings.Join(methods, ", "))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nDecide, for each of these layers, whether the feature extends an existing unit or needs a new one: ")
	names := make([]string, len(domain.LayerOrder))
	for i, l := range domain.LayerOrder {
		names[i] = string(l)
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(`.

Rules:
- action is "enhance_existing" or "create_new" ("skip" only when the feature truly needs nothing in that layer).
- enhance_existing requires "target" to be the exact type name of an existing unit listed under that layer.
- create_new proposes "target" (new type name) and "namespace".
- dto is always create_new and must include "request_type" and "response_type".
- every entry has a short "rationale".

Answer format:
{"decisions":[{"layer":"controller","action":"enhance_existing","target":"UserController","namespace":"com.example.interfaces.rest","rationale":"..."}]}
`)
	return b.String()
}

func writeParameters(b *strings.Builder, p *domain.ParameterSpec) {
	if p.IsZero() {
		return
	}
	b.WriteString("  parameters:\n")
	writeFields(b, "request", p.Request)
	writeFields(b, "response", p.Response)
	for _, v := range p.Validation {
		fmt.Fprintf(b, "    validation: %s\n", v)
	}
	if p.ExternalCall != "" {
		fmt.Fprintf(b, "    external call: %s\n", p.ExternalCall)
	}
}

func writeFields(b *strings.Builder, label string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(b, "    %s fields:\n", label)
	for _, k := range keys {
		fmt.Fprintf(b, "      %s: %s\n", k, fields[k])
	}
}
