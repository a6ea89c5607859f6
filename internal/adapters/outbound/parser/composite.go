// Package parser extracts SourceUnits from Go, Java and Kotlin files.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/layerforge/layerforge/internal/domain"
)

// DefaultCacheSize bounds the number of parsed units kept in memory.
const DefaultCacheSize = 2048

// Composite dispatches to a language parser by file extension and caches
// results keyed by path, modification time and size.
type Composite struct {
	golang domain.SourceAnalyzer
	jvm    domain.SourceAnalyzer
	cache  *lru.Cache[string, *domain.SourceUnit]
}

// New returns a Composite with the default cache size.
func New() *Composite {
	c, err := NewWithCacheSize(DefaultCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}

func NewWithCacheSize(size int) (*Composite, error) {
	cache, err := lru.New[string, *domain.SourceUnit](size)
	if err != nil {
		return nil, fmt.Errorf("creating parse cache: %w", err)
	}
	return &Composite{
		golang: NewGoParser(),
		jvm:    NewJavaParser(),
		cache:  cache,
	}, nil
}

func (c *Composite) AnalyzeFile(absPath string) (*domain.SourceUnit, error) {
	var analyzer domain.SourceAnalyzer
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".go":
		analyzer = c.golang
	case ".java", ".kt":
		analyzer = c.jvm
	default:
		return nil, fmt.Errorf("%w: unsupported source file %s", domain.ErrValue, absPath)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}
	key := fmt.Sprintf("%s|%d|%d", absPath, info.ModTime().UnixNano(), info.Size())
	if u, ok := c.cache.Get(key); ok {
		clone := u.Clone()
		return &clone, nil
	}

	unit, err := analyzer.AnalyzeFile(absPath)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, unit)
	clone := unit.Clone()
	return &clone, nil
}

// Len reports how many units are cached.
func (c *Composite) Len() int { return c.cache.Len() }
