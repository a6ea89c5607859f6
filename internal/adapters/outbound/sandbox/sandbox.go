// Package sandbox implements the file operations offered to the model. Every
// path is resolved against one project root, following symlinks, and rejected
// when the result leaves that root.
package sandbox

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/layerforge/layerforge/internal/domain"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// BackupDirName is the directory under the root that holds run backups.
const BackupDirName = "backup"

// Occurrence selects which matches Replace rewrites.
type Occurrence string

const (
	OccurrenceFirst Occurrence = "first"
	OccurrenceLast  Occurrence = "last"
	OccurrenceAll   Occurrence = "all"
)

// WriteMode selects how Write treats an existing file.
type WriteMode string

const (
	ModeOverwrite WriteMode = "overwrite"
	ModeAppend    WriteMode = "append"
)

// Options configures a Tool.
type Options struct {
	// BackupPrefix names the run's backup directory: <prefix>_<timestamp>.
	BackupPrefix string
	// LegacyEncoding is used when a file is not valid UTF-8: gb18030 or windows-1252.
	LegacyEncoding string
	Logger         *slog.Logger
	// Now is fixed once at construction to stamp the backup directory.
	Now func() time.Time
}

// Tool is the sandboxed file tool for one project root.
type Tool struct {
	root      string
	backupDir string
	legacy    encoding.Encoding
	logger    *slog.Logger
	locks     sync.Map
}

// New creates a Tool bound to root. The root must exist.
func New(root string, opts Options) (*Tool, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("project root %s: %w", root, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	prefix := opts.BackupPrefix
	if prefix == "" {
		prefix = domain.DefaultBackupPrefix
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	legacy, err := legacyEncoding(opts.LegacyEncoding)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	stamp := now().Format("20060102_150405")
	return &Tool{
		root:      resolved,
		backupDir: filepath.Join(resolved, BackupDirName, prefix+"_"+stamp),
		legacy:    legacy,
		logger:    logger.With("component", "sandbox"),
	}, nil
}

func legacyEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "", "gb18030":
		return simplifiedchinese.GB18030, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	}
	return nil, fmt.Errorf("%w: unknown legacy encoding %q", domain.ErrValue, name)
}

// Root returns the resolved absolute project root.
func (t *Tool) Root() string { return t.root }

// BackupDir returns this run's backup directory.
func (t *Tool) BackupDir() string { return t.backupDir }

// Resolve maps p to an absolute path inside the root and its slash-separated
// path relative to the root. Relative inputs are taken relative to the root;
// absolute inputs are accepted only when they land inside it. Symlinks are
// followed before the containment check.
func (t *Tool) Resolve(p string) (abs, rel string, err error) {
	if strings.TrimSpace(p) == "" {
		return "", "", fmt.Errorf("%w: empty path", domain.ErrValue)
	}
	candidate := filepath.FromSlash(p)
	if !filepath.IsAbs(candidate) {
		candidate = t.root + string(filepath.Separator) + candidate
	}

	resolved, err := evalExisting(candidate)
	if err != nil {
		return "", "", fmt.Errorf("%w: cannot resolve %s: %v", domain.ErrPathSafety, p, err)
	}

	r, err := filepath.Rel(t.root, resolved)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) || filepath.IsAbs(r) {
		return "", "", fmt.Errorf("%w: %s resolves to %s", domain.ErrPathSafety, p, resolved)
	}
	return resolved, filepath.ToSlash(r), nil
}

// evalExisting follows symlinks on the longest existing prefix of p and
// appends the not-yet-existing remainder, which cannot contain links.
func evalExisting(p string) (string, error) {
	existing := p
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return filepath.Clean(p), nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{resolved}, rest...)...), nil
}

func (t *Tool) lock(abs string) func() {
	v, _ := t.locks.LoadOrStore(abs, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Read returns the file's text. Invalid UTF-8 is decoded with the legacy encoding.
func (t *Tool) Read(p string) (string, error) {
	abs, rel, err := t.Resolve(p)
	if err != nil {
		return "", err
	}
	content, _, err := t.readDecoded(abs, rel)
	return content, err
}

func (t *Tool) readDecoded(abs, rel string) (string, bool, error) {
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, fmt.Errorf("%s: %w", rel, domain.ErrNotFound)
		}
		return "", false, fmt.Errorf("reading %s: %w", rel, err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("%w: %s is a directory", domain.ErrValue, rel)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", rel, err)
	}
	if utf8.Valid(data) {
		return string(data), false, nil
	}
	decoded, err := t.legacy.NewDecoder().Bytes(data)
	if err != nil {
		return "", false, fmt.Errorf("decoding %s: %w", rel, err)
	}
	return string(decoded), true, nil
}

// WriteResult describes a completed write.
type WriteResult struct {
	Path    string
	Bytes   int
	Created bool
	Backup  string
	Summary string
}

// Write writes content to p, creating parent directories. An existing file is
// backed up before it is touched.
func (t *Tool) Write(p, content string, mode WriteMode) (WriteResult, error) {
	if mode == "" {
		mode = ModeOverwrite
	}
	if mode != ModeOverwrite && mode != ModeAppend {
		return WriteResult{}, fmt.Errorf("%w: unknown write mode %q", domain.ErrValue, mode)
	}
	abs, rel, err := t.Resolve(p)
	if err != nil {
		return WriteResult{}, err
	}
	unlock := t.lock(abs)
	defer unlock()

	res := WriteResult{Path: rel, Bytes: len(content)}
	var before string
	if info, err := os.Stat(abs); err == nil {
		if info.IsDir() {
			return WriteResult{}, fmt.Errorf("%w: %s is a directory", domain.ErrValue, rel)
		}
		if before, _, err = t.readDecoded(abs, rel); err != nil {
			return WriteResult{}, err
		}
		if res.Backup, err = t.backupLocked(abs, rel); err != nil {
			return WriteResult{}, err
		}
	} else {
		res.Created = true
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return WriteResult{}, fmt.Errorf("creating parent of %s: %w", rel, err)
	}

	after := content
	switch mode {
	case ModeAppend:
		f, err := os.OpenFile(abs, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return WriteResult{}, fmt.Errorf("opening %s: %w", rel, err)
		}
		if _, err := io.WriteString(f, content); err != nil {
			f.Close()
			return WriteResult{}, fmt.Errorf("appending to %s: %w", rel, err)
		}
		if err := f.Close(); err != nil {
			return WriteResult{}, fmt.Errorf("closing %s: %w", rel, err)
		}
		after = before + content
	default:
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			return WriteResult{}, fmt.Errorf("writing %s: %w", rel, err)
		}
	}

	res.Summary = changeSummary(before, after)
	t.logger.Info("file written", "path", rel, "mode", string(mode), "bytes", len(content),
		"created", res.Created, "backup", res.Backup, "change", res.Summary)
	return res, nil
}

// ReplaceResult describes a completed replacement.
type ReplaceResult struct {
	Path     string
	Replaced int
	Backup   string
	Summary  string
}

// Replace rewrites occurrences of oldText in p. "last" rewrites only the final
// match and leaves everything before it byte-identical, even when newText
// itself contains oldText.
func (t *Tool) Replace(p, oldText, newText string, occ Occurrence) (ReplaceResult, error) {
	if occ == "" {
		occ = OccurrenceFirst
	}
	if occ != OccurrenceFirst && occ != OccurrenceLast && occ != OccurrenceAll {
		return ReplaceResult{}, fmt.Errorf("%w: unknown occurrence %q", domain.ErrValue, occ)
	}
	if oldText == "" {
		return ReplaceResult{}, fmt.Errorf("%w: old_text must not be empty", domain.ErrValue)
	}
	abs, rel, err := t.Resolve(p)
	if err != nil {
		return ReplaceResult{}, err
	}
	unlock := t.lock(abs)
	defer unlock()

	content, legacy, err := t.readDecoded(abs, rel)
	if err != nil {
		return ReplaceResult{}, err
	}
	count := strings.Count(content, oldText)
	if count == 0 {
		return ReplaceResult{}, fmt.Errorf("%w: old_text not found in %s", domain.ErrValue, rel)
	}

	backup, err := t.backupLocked(abs, rel)
	if err != nil {
		return ReplaceResult{}, err
	}

	var updated string
	replaced := 1
	switch occ {
	case OccurrenceFirst:
		updated = strings.Replace(content, oldText, newText, 1)
	case OccurrenceLast:
		i := strings.LastIndex(content, oldText)
		updated = content[:i] + newText + content[i+len(oldText):]
	case OccurrenceAll:
		updated = strings.ReplaceAll(content, oldText, newText)
		replaced = count
	}

	data := []byte(updated)
	if legacy {
		if enc, err := t.legacy.NewEncoder().String(updated); err == nil {
			data = []byte(enc)
		}
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return ReplaceResult{}, fmt.Errorf("writing %s: %w", rel, err)
	}

	res := ReplaceResult{Path: rel, Replaced: replaced, Backup: backup, Summary: changeSummary(content, updated)}
	t.logger.Info("text replaced", "path", rel, "occurrence", string(occ), "replaced", replaced,
		"backup", backup, "change", res.Summary)
	return res, nil
}

// List returns root-relative paths of files under dir matching pattern. A
// pattern without a slash matches file base names; a pattern with slashes or
// "**" matches the path relative to dir. The backup directory is never listed.
func (t *Tool) List(dir, pattern string) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	if pattern == "" {
		pattern = "*"
	}
	if _, err := path.Match(strings.ReplaceAll(pattern, "**", "*"), ""); err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %v", domain.ErrValue, pattern, err)
	}
	abs, rel, err := t.Resolve(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", rel, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("listing %s: %w", rel, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrValue, rel)
	}

	backupRoot := filepath.Join(t.root, BackupDirName)
	var out []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p == backupRoot || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		under, _ := filepath.Rel(abs, p)
		under = filepath.ToSlash(under)
		if !matchPattern(pattern, under) {
			return nil
		}
		fromRoot, _ := filepath.Rel(t.root, p)
		out = append(out, filepath.ToSlash(fromRoot))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", rel, err)
	}
	sort.Strings(out)
	return out, nil
}

func matchPattern(pattern, rel string) bool {
	if !strings.Contains(pattern, "/") && !strings.Contains(pattern, "**") {
		ok, _ := path.Match(pattern, path.Base(rel))
		return ok
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

// matchSegments matches path segments where "**" spans zero or more segments.
func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], segs[0]); !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

// Exists reports whether p exists inside the root. Unsafe paths report false.
func (t *Tool) Exists(p string) bool {
	abs, _, err := t.Resolve(p)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// Mkdir creates p and any missing parents. It is idempotent.
func (t *Tool) Mkdir(p string) (string, error) {
	abs, rel, err := t.Resolve(p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", rel, err)
	}
	t.logger.Info("directory created", "path", rel)
	return rel, nil
}

// Backup copies p into the run's backup directory, preserving its relative
// path, and returns the backup's root-relative path.
func (t *Tool) Backup(p string) (string, error) {
	abs, rel, err := t.Resolve(p)
	if err != nil {
		return "", err
	}
	unlock := t.lock(abs)
	defer unlock()
	return t.backupLocked(abs, rel)
}

func (t *Tool) backupLocked(abs, rel string) (string, error) {
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", rel, domain.ErrNotFound)
		}
		return "", fmt.Errorf("backing up %s: %w", rel, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", domain.ErrValue, rel)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("backing up %s: %w", rel, err)
	}
	dest := filepath.Join(t.backupDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("creating backup dir: %w", err)
	}
	if err := os.WriteFile(dest, data, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("writing backup of %s: %w", rel, err)
	}
	backupRel, _ := filepath.Rel(t.root, dest)
	backupRel = filepath.ToSlash(backupRel)
	t.logger.Debug("file backed up", "path", rel, "backup", backupRel)
	return backupRel, nil
}
