package application

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/layerforge/layerforge/internal/domain"
	"github.com/layerforge/layerforge/internal/domain/classify"
)

// ScanService builds a ProjectStructure:
// scan files → detect source roots → analyze units → classify → infer root namespace.
type ScanService struct {
	scanner  domain.ProjectScanner
	detector domain.SourceRootDetector
	analyzer domain.SourceAnalyzer
	logger   *slog.Logger
}

func NewScanService(
	scanner domain.ProjectScanner,
	detector domain.SourceRootDetector,
	analyzer domain.SourceAnalyzer,
	logger *slog.Logger,
) *ScanService {
	return &ScanService{
		scanner:  scanner,
		detector: detector,
		analyzer: analyzer,
		logger:   orDiscard(logger),
	}
}

// Scan never fails. A missing or unreadable root yields an empty structure with
// the problem recorded in Warnings.
func (s *ScanService) Scan(projectPath string, cfg domain.ScanConfig) *domain.ProjectStructure {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		absPath = projectPath
	}
	st := &domain.ProjectStructure{RootPath: absPath}

	// 1. Walk the filesystem
	scan, err := s.scanner.Scan(absPath, cfg.ExcludePaths...)
	if err != nil {
		s.logger.Warn("scan failed", "root", absPath, "error", err)
		st.Warnings = append(st.Warnings, fmt.Sprintf("scanning project: %v", err))
		return st
	}
	st.Warnings = append(st.Warnings, scan.Warnings...)
	st.Resources = scan.ResourceFiles

	// 2. Group files by source root
	roots, err := s.detector.Detect(scan)
	if err != nil {
		s.logger.Warn("source root detection failed", "root", absPath, "error", err)
		st.Warnings = append(st.Warnings, fmt.Sprintf("detecting source roots: %v", err))
		return st
	}
	for _, r := range roots {
		st.SourceRoots = append(st.SourceRoots, r.Path)
	}
	if len(roots) > 0 {
		st.Language = roots[0].Language
		if st.Language == "go" {
			st.ModulePath = roots[0].Module
		}
	}

	// 3. Analyze and classify each unit
	var namespaces []string
	for _, r := range roots {
		for _, f := range r.Files {
			unit, err := s.analyzer.AnalyzeFile(filepath.Join(absPath, filepath.FromSlash(f)))
			if err != nil {
				s.logger.Debug("skipping unparseable file", "path", f, "error", err)
				st.Warnings = append(st.Warnings, fmt.Sprintf("analyzing %s: %v", f, err))
				continue
			}
			unit.Path = f
			layer, match := classify.Classify(*unit)
			s.logger.Debug("classified unit",
				"path", f, "layer", string(layer), "rule", match.Rule, "token", match.Token)
			st.Add(layer, *unit)
			if unit.Namespace != "" {
				namespaces = append(namespaces, unit.Namespace)
			}
		}
	}

	// 4. Infer the root namespace
	if st.ModulePath != "" {
		st.RootNamespace = st.ModulePath
	} else {
		st.RootNamespace = classify.InferRootNamespace(namespaces, cfg.MinNamespaceDepth)
	}
	st.SortUnits()

	s.logger.Info("project scanned",
		"root", absPath,
		"units", st.TotalUnits(),
		"unclassified", st.Unclassified,
		"root_namespace", st.RootNamespace)
	return st
}

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
