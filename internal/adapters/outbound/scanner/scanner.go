package scanner

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/layerforge/layerforge/internal/domain"
	ignore "github.com/sabhiram/go-gitignore"
)

var skipDirs = map[string]bool{
	".git":         true,
	".idea":        true,
	".gradle":      true,
	".layerforge":  true,
	"target":       true,
	"build":        true,
	"out":          true,
	"dist":         true,
	"node_modules": true,
	"vendor":       true,
	"backup":       true,
	"testdata":     true,
}

// FileScanner implements domain.ProjectScanner by walking the filesystem.
type FileScanner struct {
	maxFileSize int64
}

// Option configures a FileScanner.
type Option func(*FileScanner)

// WithMaxFileSize skips source files larger than n bytes.
func WithMaxFileSize(n int64) Option {
	return func(s *FileScanner) { s.maxFileSize = n }
}

func New(opts ...Option) *FileScanner {
	s := &FileScanner{maxFileSize: domain.DefaultMaxFileSize}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Scan walks projectPath. Directory names in excludePaths are skipped in
// addition to the built-in list and the root .gitignore. A missing root is an
// error wrapping domain.ErrNotFound.
func (s *FileScanner) Scan(projectPath string, excludePaths ...string) (*domain.ScanResult, error) {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("project root %s: %w", absPath, domain.ErrNotFound)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: project root %s is not a directory", domain.ErrValue, absPath)
	}

	// Merge extra excludes with built-in skip dirs.
	extraSkip := make(map[string]bool, len(excludePaths))
	for _, p := range excludePaths {
		extraSkip[strings.Trim(filepath.ToSlash(p), "/")] = true
	}
	rules := ignoreRules(absPath)

	result := &domain.ScanResult{
		RootPath: absPath,
	}

	err = filepath.WalkDir(absPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == absPath {
				return err
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("skipping %s: %v", path, err))
			return nil
		}
		if path == absPath {
			return nil
		}

		relPath, _ := filepath.Rel(absPath, path)
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if skipDirs[d.Name()] || extraSkip[d.Name()] || extraSkip[relPath] {
				return filepath.SkipDir
			}
			if rules != nil && (rules.MatchesPath(relPath) || rules.MatchesPath(relPath+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if rules != nil && rules.MatchesPath(relPath) {
			return nil
		}
		if domain.SourceLanguage(relPath) != "" && s.maxFileSize > 0 {
			if fi, err := d.Info(); err == nil && fi.Size() > s.maxFileSize {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("skipping %s: %d bytes exceeds %d", relPath, fi.Size(), s.maxFileSize))
				return nil
			}
		}

		result.AddFile(relPath)
		return nil
	})

	return result, err
}

// ignoreRules compiles the root .gitignore, or returns nil when there is none.
func ignoreRules(rootDir string) *ignore.GitIgnore {
	f, err := os.Open(filepath.Join(rootDir, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(lines...)
}
