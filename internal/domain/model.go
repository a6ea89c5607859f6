package domain

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// Layer is one of the architectural roles a generated or modified unit belongs to.
type Layer string

const (
	LayerDTO                Layer = "dto"
	LayerEntity             Layer = "entity"
	LayerDataAccess         Layer = "data_access"
	LayerDomainService      Layer = "domain_service"
	LayerExternalClient     Layer = "external_client"
	LayerApplicationService Layer = "application_service"
	LayerController         Layer = "controller"
	LayerUnknown            Layer = ""
)

// LayerOrder is the dependency order layers are generated in. Lower layers come
// first so later layers can reference freshly named types.
var LayerOrder = []Layer{
	LayerDTO,
	LayerEntity,
	LayerDataAccess,
	LayerDomainService,
	LayerExternalClient,
	LayerApplicationService,
	LayerController,
}

// ParseLayer maps a layer name (including a few common aliases) to a Layer.
func ParseLayer(name string) (Layer, bool) {
	switch name {
	case "dto", "data_transfer_object", "data-transfer-object":
		return LayerDTO, true
	case "entity":
		return LayerEntity, true
	case "data_access", "data-access", "mapper", "dao", "repository":
		return LayerDataAccess, true
	case "domain_service", "domain-service":
		return LayerDomainService, true
	case "external_client", "external-client", "feign", "client":
		return LayerExternalClient, true
	case "application_service", "application-service", "service":
		return LayerApplicationService, true
	case "controller":
		return LayerController, true
	}
	return LayerUnknown, false
}

// ParseLayers parses a comma-separated layer list. Blank input yields nil.
func ParseLayers(list string) ([]Layer, error) {
	var out []Layer
	for _, name := range strings.Split(list, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		l, ok := ParseLayer(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown layer %q", ErrValue, name)
		}
		out = append(out, l)
	}
	return out, nil
}

// SourceUnit is one source file's primary declared type with its structural metadata.
type SourceUnit struct {
	Path        string   `json:"path"`
	Language    string   `json:"language"`
	Namespace   string   `json:"namespace"`
	TypeName    string   `json:"type_name"`
	Kind        string   `json:"kind,omitempty"`
	Annotations []string `json:"annotations,omitempty"`
	Methods     []string `json:"methods,omitempty"`
	Imports     []string `json:"imports,omitempty"`
}

// HasAnnotation reports whether the unit carries the named annotation.
func (u SourceUnit) HasAnnotation(name string) bool {
	for _, a := range u.Annotations {
		if a == name {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with u.
func (u SourceUnit) Clone() SourceUnit {
	c := u
	c.Annotations = slices.Clone(u.Annotations)
	c.Methods = slices.Clone(u.Methods)
	c.Imports = slices.Clone(u.Imports)
	return c
}

// ProjectStructure is the classified snapshot of a project. It is built once per
// invocation and treated as read-only afterwards.
type ProjectStructure struct {
	RootPath            string       `json:"root_path"`
	RootNamespace       string       `json:"root_namespace"`
	Language            string       `json:"language,omitempty"`
	ModulePath          string       `json:"module_path,omitempty"`
	SourceRoots         []string     `json:"source_roots,omitempty"`
	Controllers         []SourceUnit `json:"controllers"`
	ApplicationServices []SourceUnit `json:"application_services"`
	DomainServices      []SourceUnit `json:"domain_services"`
	DataAccess          []SourceUnit `json:"data_access"`
	Entities            []SourceUnit `json:"entities"`
	DTOs                []SourceUnit `json:"dtos"`
	ExternalClients     []SourceUnit `json:"external_clients"`
	Resources           []string     `json:"resources,omitempty"`
	Unclassified        int          `json:"unclassified"`
	Warnings            []string     `json:"warnings,omitempty"`
}

// UnitsFor returns the collection that holds units of the given layer.
func (s *ProjectStructure) UnitsFor(layer Layer) []SourceUnit {
	if s == nil {
		return nil
	}
	switch layer {
	case LayerController:
		return s.Controllers
	case LayerApplicationService:
		return s.ApplicationServices
	case LayerDomainService:
		return s.DomainServices
	case LayerDataAccess:
		return s.DataAccess
	case LayerEntity:
		return s.Entities
	case LayerDTO:
		return s.DTOs
	case LayerExternalClient:
		return s.ExternalClients
	}
	return nil
}

// Add appends a unit to the collection for layer. Unknown layers are counted
// as unclassified and dropped.
func (s *ProjectStructure) Add(layer Layer, u SourceUnit) {
	switch layer {
	case LayerController:
		s.Controllers = append(s.Controllers, u)
	case LayerApplicationService:
		s.ApplicationServices = append(s.ApplicationServices, u)
	case LayerDomainService:
		s.DomainServices = append(s.DomainServices, u)
	case LayerDataAccess:
		s.DataAccess = append(s.DataAccess, u)
	case LayerEntity:
		s.Entities = append(s.Entities, u)
	case LayerDTO:
		s.DTOs = append(s.DTOs, u)
	case LayerExternalClient:
		s.ExternalClients = append(s.ExternalClients, u)
	default:
		s.Unclassified++
	}
}

// FindUnit looks up a unit by type name within a layer's collection.
func (s *ProjectStructure) FindUnit(layer Layer, typeName string) (SourceUnit, bool) {
	for _, u := range s.UnitsFor(layer) {
		if u.TypeName == typeName {
			return u, true
		}
	}
	return SourceUnit{}, false
}

// TotalUnits counts classified units across all collections.
func (s *ProjectStructure) TotalUnits() int {
	n := 0
	for _, l := range LayerOrder {
		n += len(s.UnitsFor(l))
	}
	return n
}

// SortUnits orders every collection by path so output is deterministic.
func (s *ProjectStructure) SortUnits() {
	for _, units := range [][]SourceUnit{
		s.Controllers, s.ApplicationServices, s.DomainServices,
		s.DataAccess, s.Entities, s.DTOs, s.ExternalClients,
	} {
		sort.SliceStable(units, func(i, j int) bool { return units[i].Path < units[j].Path })
	}
}

// Action is what the pipeline does for one layer.
type Action string

const (
	ActionEnhanceExisting Action = "enhance_existing"
	ActionCreateNew       Action = "create_new"
	// ActionSkip marks a layer the feature does not need. Only honoured when the
	// model asks for it explicitly; the coordinator treats it as a no-op.
	ActionSkip Action = "skip"
)

// LayerDecision is the per-layer placement choice.
type LayerDecision struct {
	Layer        Layer  `json:"layer"`
	Action       Action `json:"action"`
	Target       string `json:"target,omitempty"`
	Namespace    string `json:"namespace,omitempty"`
	Path         string `json:"path,omitempty"`
	Rationale    string `json:"rationale"`
	RequestType  string `json:"request_type,omitempty"`
	ResponseType string `json:"response_type,omitempty"`
}

// Decisions is the full decision set for one feature request.
type Decisions struct {
	ByLayer  map[Layer]LayerDecision `json:"by_layer"`
	Fallback bool                    `json:"fallback"`
	Warning  string                  `json:"warning,omitempty"`
}

// Ordered returns the decisions in LayerOrder.
func (d Decisions) Ordered() []LayerDecision {
	out := make([]LayerDecision, 0, len(d.ByLayer))
	for _, l := range LayerOrder {
		if dec, ok := d.ByLayer[l]; ok {
			out = append(out, dec)
		}
	}
	return out
}

// ParameterSpec is the optional structured description of a feature's inputs.
type ParameterSpec struct {
	Request      map[string]string `json:"request,omitempty" yaml:"request"`
	Response     map[string]string `json:"response,omitempty" yaml:"response"`
	Validation   []string          `json:"validation,omitempty" yaml:"validation"`
	ExternalCall string            `json:"external_call,omitempty" yaml:"external_call"`
}

// IsZero reports whether no parameters were given.
func (p *ParameterSpec) IsZero() bool {
	return p == nil || (len(p.Request) == 0 && len(p.Response) == 0 &&
		len(p.Validation) == 0 && p.ExternalCall == "")
}

// FeatureRequest is the coordinator input.
type FeatureRequest struct {
	ProjectPath string         `json:"project_path"`
	Keyword     string         `json:"keyword"`
	Route       string         `json:"route,omitempty"`
	Description string         `json:"description"`
	Parameters  *ParameterSpec `json:"parameters,omitempty"`
}

// Termination records how an orchestrator conversation ended.
type Termination string

const (
	TerminationCompleted Termination = "completed"
	TerminationExhausted Termination = "exhausted"
	TerminationFailed    Termination = "failed"
	TerminationSkipped   Termination = "skipped"
)

// GenerationResult is the outcome of one layer's orchestrator conversation.
type GenerationResult struct {
	Layer        Layer              `json:"layer"`
	Decision     LayerDecision      `json:"decision"`
	Success      bool               `json:"success"`
	Termination  Termination        `json:"termination"`
	WrittenFiles []string           `json:"written_files"`
	Turns        []ConversationTurn `json:"turns,omitempty"`
	Error        string             `json:"error,omitempty"`
	Warning      string             `json:"warning,omitempty"`
}

// RunReport aggregates one pipeline run.
type RunReport struct {
	ID            string             `json:"id"`
	ProjectPath   string             `json:"project_path"`
	Feature       FeatureRequest     `json:"feature"`
	RootNamespace string             `json:"root_namespace"`
	Decisions     Decisions          `json:"decisions"`
	Results       []GenerationResult `json:"results"`
	Success       bool               `json:"success"`
	CommitHash    string             `json:"commit_hash,omitempty"`
	DirtyFiles    []string           `json:"dirty_files,omitempty"`
	StartedAt     time.Time          `json:"started_at"`
	FinishedAt    time.Time          `json:"finished_at"`
}

// WrittenFiles returns every file written across layers, deduplicated, in order.
func (r *RunReport) WrittenFiles() []string {
	seen := make(map[string]bool)
	var out []string
	for _, res := range r.Results {
		for _, f := range res.WrittenFiles {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// RunSummary is the compact history entry for a run.
type RunSummary struct {
	ID           string    `json:"id"`
	Keyword      string    `json:"keyword"`
	Success      bool      `json:"success"`
	LayersOK     int       `json:"layers_ok"`
	LayersTotal  int       `json:"layers_total"`
	WrittenFiles []string  `json:"written_files,omitempty"`
	CommitHash   string    `json:"commit_hash,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Summary condenses the report into a history entry.
func (r *RunReport) Summary() RunSummary {
	s := RunSummary{
		ID:           r.ID,
		Keyword:      r.Feature.Keyword,
		Success:      r.Success,
		WrittenFiles: r.WrittenFiles(),
		CommitHash:   r.CommitHash,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
	for _, res := range r.Results {
		if res.Termination == TerminationSkipped {
			continue
		}
		s.LayersTotal++
		if res.Success {
			s.LayersOK++
		}
	}
	return s
}
