package domain

import (
	"path"
	"strings"
)

// ProjectScanner walks a project directory and returns the candidate files.
type ProjectScanner interface {
	Scan(projectPath string, excludePaths ...string) (*ScanResult, error)
}

// SourceRootDetector groups scanned files under the source roots they belong to.
type SourceRootDetector interface {
	Detect(scan *ScanResult) ([]SourceRoot, error)
}

// SourceAnalyzer extracts a SourceUnit from a single source file.
type SourceAnalyzer interface {
	AnalyzeFile(absPath string) (*SourceUnit, error)
}

// ConfigLoader reads project configuration.
type ConfigLoader interface {
	Load(projectPath string) (ProjectConfig, error)
}

// GitInfo reads repository metadata for run reports.
type GitInfo interface {
	IsGitRepo(projectPath string) bool
	CommitHash(projectPath string) (string, error)
	DirtyFiles(projectPath string) ([]string, error)
}

// RunHistory persists and lists completed runs.
type RunHistory interface {
	Save(projectPath string, report *RunReport) error
	Load(projectPath string) ([]RunSummary, error)
}

// RunRecorder receives progress events during a pipeline run.
type RunRecorder interface {
	RunStarted(report *RunReport) error
	LayerStarted(runID string, decision LayerDecision) error
	LayerFinished(runID string, result GenerationResult) error
	RunFinished(report *RunReport) error
}

// ScanResult holds the files found under a project directory.
type ScanResult struct {
	RootPath      string   `json:"root_path"`
	SourceFiles   []string `json:"source_files"`
	ResourceFiles []string `json:"resource_files"`
	GoModFiles    []string `json:"go_mod_files"`
	BuildFiles    []string `json:"build_files"`
	AllFiles      []string `json:"all_files"`
	Warnings      []string `json:"warnings,omitempty"`
}

// SourceLanguage returns the language for a source file extension, or "".
func SourceLanguage(relPath string) string {
	switch strings.ToLower(path.Ext(relPath)) {
	case ".java":
		return "java"
	case ".kt":
		return "kotlin"
	case ".go":
		return "go"
	}
	return ""
}

// AddFile classifies a relative path into the appropriate lists.
func (s *ScanResult) AddFile(relPath string) {
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	s.AllFiles = append(s.AllFiles, relPath)
	base := path.Base(relPath)
	switch {
	case base == "go.mod":
		s.GoModFiles = append(s.GoModFiles, relPath)
	case base == "pom.xml" || base == "build.gradle" || base == "build.gradle.kts":
		s.BuildFiles = append(s.BuildFiles, relPath)
	case isTestSource(relPath):
	case SourceLanguage(relPath) != "":
		s.SourceFiles = append(s.SourceFiles, relPath)
	case isResource(relPath):
		s.ResourceFiles = append(s.ResourceFiles, relPath)
	}
}

func isTestSource(relPath string) bool {
	if strings.HasSuffix(relPath, "_test.go") {
		return true
	}
	return strings.Contains("/"+relPath, "/src/test/")
}

func isResource(relPath string) bool {
	if strings.Contains("/"+relPath, "/src/main/resources/") {
		return true
	}
	if strings.HasSuffix(relPath, ".xml") {
		for _, seg := range strings.Split(path.Dir(relPath), "/") {
			if seg == "mapper" || seg == "mappers" {
				return true
			}
		}
	}
	return false
}

// SourceRoot is a directory whose subtree holds one module's sources.
type SourceRoot struct {
	Path     string   `json:"path"`
	Language string   `json:"language"`
	Module   string   `json:"module,omitempty"`
	Files    []string `json:"files"`
}
