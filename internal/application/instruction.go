package application

import (
	"fmt"
	"sort"
	"strings"

	"github.com/layerforge/layerforge/internal/domain"
)

const systemPrompt = `You are a senior engineer editing an existing code base through file tools.
Work only inside the project root. Paths are relative to that root.
Read an existing file before you change it. Prefer replace_text for small edits to
existing files and write_file with the complete content for new files.
Match the package, imports, naming and annotations used by the surrounding code.
When the file is written, reply with a one-line summary and no further tool calls.`

// layerGuidance is the per-layer reminder appended to the instruction.
var layerGuidance = map[domain.Layer]string{
	domain.LayerDTO:                "Create the request and response types with the listed fields and validation annotations.",
	domain.LayerEntity:             "Model the persistent fields of the feature. Keep persistence annotations consistent with existing entities.",
	domain.LayerDataAccess:         "Add the queries the feature needs. Keep mapper XML and interface methods in sync when a mapper XML exists.",
	domain.LayerDomainService:      "Put business rules here. Do not call controllers or external clients.",
	domain.LayerExternalClient:     "Declare the remote call described by the feature. Do not implement business logic.",
	domain.LayerApplicationService: "Coordinate data access, domain services and external clients for the feature.",
	domain.LayerController:         "Expose the route, validate the request type and delegate to the application service.",
}

func buildInstruction(task LayerTask) string {
	dec, f, st := task.Decision, task.Feature, task.Structure
	var b strings.Builder

	fmt.Fprintf(&b, "Feature: %s\n", f.Keyword)
	if f.Route != "" {
		fmt.Fprintf(&b, "Route: %s\n", f.Route)
	}
	if f.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", f.Description)
	}
	if st != nil && st.RootNamespace != "" {
		fmt.Fprintf(&b, "Root namespace: %s\n", st.RootNamespace)
	}
	if st != nil && st.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", st.Language)
	}
	writeParameterSpec(&b, f.Parameters)

	fmt.Fprintf(&b, "\nLayer: %s\n", dec.Layer)
	switch dec.Action {
	case domain.ActionEnhanceExisting:
		fmt.Fprintf(&b, "Task: enhance the existing unit %s at %s. Read %s first, then modify it in place.\n",
			dec.Target, dec.Path, dec.Path)
	default:
		fmt.Fprintf(&b, "Task: create %s in namespace %s at %s.\n", dec.Target, dec.Namespace, dec.Path)
	}
	if dec.RequestType != "" || dec.ResponseType != "" {
		fmt.Fprintf(&b, "Request type: %s\nResponse type: %s\n", dec.RequestType, dec.ResponseType)
	}
	if dec.Rationale != "" {
		fmt.Fprintf(&b, "Placement rationale: %s\n", dec.Rationale)
	}
	if g := layerGuidance[dec.Layer]; g != "" {
		fmt.Fprintf(&b, "%s\n", g)
	}

	if related := relatedLines(task.Related, dec.Layer); len(related) > 0 {
		b.WriteString("\nOther layers of this feature:\n")
		for _, l := range related {
			b.WriteString(l)
		}
	}
	return b.String()
}

func relatedLines(decs []domain.LayerDecision, self domain.Layer) []string {
	var out []string
	for _, d := range decs {
		if d.Layer == self || d.Action == domain.ActionSkip {
			continue
		}
		line := fmt.Sprintf("- %s: %s (%s)", d.Layer, d.Target, d.Path)
		if d.RequestType != "" {
			line += fmt.Sprintf(" request %s, response %s", d.RequestType, d.ResponseType)
		}
		out = append(out, line+"\n")
	}
	return out
}

func writeParameterSpec(b *strings.Builder, p *domain.ParameterSpec) {
	if p.IsZero() {
		return
	}
	writeFieldMap(b, "Request fields", p.Request)
	writeFieldMap(b, "Response fields", p.Response)
	if len(p.Validation) > 0 {
		fmt.Fprintf(b, "Validation: %s\n", strings.Join(p.Validation, "; "))
	}
	if p.ExternalCall != "" {
		fmt.Fprintf(b, "External call: %s\n", p.ExternalCall)
	}
}

func writeFieldMap(b *strings.Builder, label string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + " " + fields[n]
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(parts, ", "))
}
