// Package placement decides, per layer, whether a feature extends an existing
// unit or needs a new one. It builds the decision prompt, parses the model's
// answer tolerantly and validates it against the scanned structure.
package placement

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/layerforge/layerforge/internal/domain"
	"github.com/layerforge/layerforge/internal/domain/repair"
)

// Defaults returns the all-create_new decision set used when the model is
// unavailable or its answer cannot be used.
func Defaults(s *domain.ProjectStructure, f domain.FeatureRequest, warning string) domain.Decisions {
	d := domain.Decisions{
		ByLayer:  make(map[domain.Layer]domain.LayerDecision, len(domain.LayerOrder)),
		Fallback: true,
		Warning:  warning,
	}
	for _, layer := range domain.LayerOrder {
		d.ByLayer[layer] = createNew(s, f, layer, "", "",
			"default placement: no usable model decision, creating a new unit in the conventional namespace")
	}
	return d
}

func rootNamespace(s *domain.ProjectStructure) string {
	if s == nil {
		return ""
	}
	return s.RootNamespace
}

func createNew(s *domain.ProjectStructure, f domain.FeatureRequest, layer domain.Layer, target, namespace, rationale string) domain.LayerDecision {
	if target == "" || !isIdentifier(target) {
		target = TypeName(layer, f.Keyword)
	}
	if namespace == "" {
		namespace = DefaultNamespace(rootNamespace(s), layer)
	}
	dec := domain.LayerDecision{
		Layer:     layer,
		Action:    domain.ActionCreateNew,
		Target:    target,
		Namespace: namespace,
		Path:      SuggestPath(s, namespace, target),
		Rationale: rationale,
	}
	if layer == domain.LayerDTO {
		dec.RequestType, dec.ResponseType = RequestResponseNames(f.Keyword)
		dec.Target = dec.RequestType
		dec.Path = SuggestPath(s, namespace, dec.RequestType)
	}
	return dec
}

// RawDecision is one layer's entry as the model wrote it.
type RawDecision struct {
	Layer        string `json:"layer"`
	Action       string `json:"action"`
	Target       string `json:"target"`
	TargetClass  string `json:"target_class"`
	Namespace    string `json:"namespace"`
	Package      string `json:"package"`
	Path         string `json:"path"`
	Rationale    string `json:"rationale"`
	Reason       string `json:"reason"`
	RequestType  string `json:"request_type"`
	ResponseType string `json:"response_type"`
}

// ParseAnswer extracts per-layer raw decisions from model text. It accepts
// {"decisions":[...]} or an object keyed by layer name, inside code fences or
// prose, and runs the repair pipeline on malformed JSON.
func ParseAnswer(text string) (map[domain.Layer]RawDecision, error) {
	body := repair.ExtractObject(text)
	if !strings.HasPrefix(body, "{") {
		return nil, fmt.Errorf("%w: no JSON object in answer", domain.ErrDecisionUnparseable)
	}
	obj, _, err := repair.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecisionUnparseable, err)
	}

	out := make(map[domain.Layer]RawDecision)
	if list, ok := obj["decisions"].([]any); ok {
		for _, item := range list {
			var raw RawDecision
			if !remarshal(item, &raw) {
				continue
			}
			if layer, ok := domain.ParseLayer(normalize(raw.Layer)); ok {
				out[layer] = raw
			}
		}
	} else {
		for key, item := range obj {
			layer, ok := domain.ParseLayer(normalize(key))
			if !ok {
				continue
			}
			var raw RawDecision
			if !remarshal(item, &raw) {
				continue
			}
			raw.Layer = string(layer)
			out[layer] = raw
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: answer names no known layer", domain.ErrDecisionUnparseable)
	}
	return out, nil
}

func remarshal(v any, dst *RawDecision) bool {
	if _, ok := v.(map[string]any); !ok {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

func parseAction(s string) (domain.Action, bool) {
	switch normalize(s) {
	case "enhance_existing", "enhance", "extend", "modify", "update":
		return domain.ActionEnhanceExisting, true
	case "create_new", "create", "new":
		return domain.ActionCreateNew, true
	case "skip", "none", "no_op", "noop":
		return domain.ActionSkip, true
	}
	return "", false
}

// Validate turns raw model decisions into a complete, consistent decision set:
// every layer is present, enhance_existing only targets units that exist in
// the matching collection, and the DTO layer is always create_new with request
// and response names.
func Validate(s *domain.ProjectStructure, f domain.FeatureRequest, raw map[domain.Layer]RawDecision) domain.Decisions {
	d := domain.Decisions{ByLayer: make(map[domain.Layer]domain.LayerDecision, len(domain.LayerOrder))}
	for _, layer := range domain.LayerOrder {
		d.ByLayer[layer] = validateOne(s, f, layer, raw)
	}
	return d
}

func validateOne(s *domain.ProjectStructure, f domain.FeatureRequest, layer domain.Layer, all map[domain.Layer]RawDecision) domain.LayerDecision {
	r, ok := all[layer]
	if !ok {
		return createNew(s, f, layer, "", "",
			"answer did not cover this layer; creating a new unit in the conventional namespace")
	}
	target := cleanTarget(firstNonEmpty(r.Target, r.TargetClass))
	namespace := firstNonEmpty(r.Namespace, r.Package)
	rationale := firstNonEmpty(r.Rationale, r.Reason)

	action, valid := parseAction(r.Action)
	if !valid {
		return createNew(s, f, layer, "", "",
			fmt.Sprintf("invalid action %q coerced to create_new with a conventional namespace", r.Action))
	}

	if layer == domain.LayerDTO {
		dec := createNew(s, f, layer, "", namespace, orDefault(rationale, "request and response types are always new"))
		if action != domain.ActionCreateNew {
			dec.Rationale = fmt.Sprintf("dto is always create_new (answer said %s); %s", action, dec.Rationale)
		}
		if isIdentifier(r.RequestType) {
			dec.RequestType = r.RequestType
			dec.Target = r.RequestType
		}
		if isIdentifier(r.ResponseType) {
			dec.ResponseType = r.ResponseType
		}
		dec.Path = pickPath(s, r.Path, dec.Namespace, dec.Target)
		return dec
	}

	switch action {
	case domain.ActionSkip:
		return domain.LayerDecision{
			Layer:     layer,
			Action:    domain.ActionSkip,
			Rationale: orDefault(rationale, "layer not needed for this feature"),
		}
	case domain.ActionEnhanceExisting:
		if target == "" {
			return createNew(s, f, layer, "", "",
				"enhance_existing without a target; creating a new unit in the conventional namespace")
		}
		unit, found := s.FindUnit(layer, target)
		if !found {
			return createNew(s, f, layer, "", "",
				fmt.Sprintf("target %q is not an existing %s unit; creating a new unit in the conventional namespace", target, layer))
		}
		return domain.LayerDecision{
			Layer:     layer,
			Action:    domain.ActionEnhanceExisting,
			Target:    unit.TypeName,
			Namespace: unit.Namespace,
			Path:      unit.Path,
			Rationale: orDefault(rationale, fmt.Sprintf("extend existing %s", unit.TypeName)),
		}
	}

	dec := createNew(s, f, layer, target, namespace, orDefault(rationale, "new unit for this feature"))
	dec.Path = pickPath(s, r.Path, dec.Namespace, dec.Target)
	return dec
}

// pickPath keeps a model-proposed path when it is a clean relative path and
// otherwise derives one from namespace and type name.
func pickPath(s *domain.ProjectStructure, proposed, namespace, typeName string) string {
	p := strings.TrimSpace(strings.ReplaceAll(proposed, "\\", "/"))
	if p != "" && !path.IsAbs(p) && !strings.HasPrefix(path.Clean(p), "..") && path.Ext(p) != "" {
		return path.Clean(p)
	}
	return SuggestPath(s, namespace, typeName)
}

// cleanTarget accepts "UserController", "com.acme.UserController" and
// "UserController.java" as the same name.
func cleanTarget(t string) string {
	t = strings.TrimSpace(t)
	for _, ext := range []string{".java", ".kt", ".go"} {
		t = strings.TrimSuffix(t, ext)
	}
	if i := strings.LastIndexAny(t, "./"); i >= 0 {
		t = t[i+1:]
	}
	return t
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
