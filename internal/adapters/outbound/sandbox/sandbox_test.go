package sandbox_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/layerforge/layerforge/internal/adapters/outbound/sandbox"
	"github.com/layerforge/layerforge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC) }

func newTool(t *testing.T) (*sandbox.Tool, string) {
	t.Helper()
	root := t.TempDir()
	tool, err := sandbox.New(root, sandbox.Options{BackupPrefix: "test", Now: fixedNow})
	require.NoError(t, err)
	return tool, tool.Root()
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := sandbox.New(filepath.Join(t.TempDir(), "nope"), sandbox.Options{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestNew_UnknownEncoding(t *testing.T) {
	_, err := sandbox.New(t.TempDir(), sandbox.Options{LegacyEncoding: "ebcdic"})
	assert.True(t, errors.Is(err, domain.ErrValue))
}

func TestPathSafety_AllOperationsRejectEscapes(t *testing.T) {
	tool, root := newTool(t)
	outside := t.TempDir()
	writeFile(t, outside, "secret.txt", "top secret")
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "secret-link.txt")))

	candidates := []string{
		"../../etc/passwd",
		"src/../../outside.txt",
		"/etc/passwd",
		filepath.Join(outside, "secret.txt"),
		"link/secret.txt",
		"link/new-file.txt",
		"secret-link.txt",
	}
	for _, p := range candidates {
		t.Run(p, func(t *testing.T) {
			_, err := tool.Read(p)
			assert.True(t, errors.Is(err, domain.ErrPathSafety), "read: %v", err)

			_, err = tool.Write(p, "x", sandbox.ModeOverwrite)
			assert.True(t, errors.Is(err, domain.ErrPathSafety), "write: %v", err)

			_, err = tool.Replace(p, "secret", "public", sandbox.OccurrenceAll)
			assert.True(t, errors.Is(err, domain.ErrPathSafety), "replace: %v", err)

			_, err = tool.List(p, "*")
			assert.True(t, errors.Is(err, domain.ErrPathSafety), "list: %v", err)

			_, err = tool.Mkdir(p)
			assert.True(t, errors.Is(err, domain.ErrPathSafety), "mkdir: %v", err)

			_, err = tool.Backup(p)
			assert.True(t, errors.Is(err, domain.ErrPathSafety), "backup: %v", err)

			assert.False(t, tool.Exists(p))
		})
	}

	data, err := os.ReadFile(filepath.Join(outside, "secret.txt"))
	require.NoError(t, err)
	assert.Equal(t, "top secret", string(data))
	_, err = os.Stat(filepath.Join(outside, "new-file.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestResolve_InsideSymlinkAllowed(t *testing.T) {
	tool, root := newTool(t)
	writeFile(t, root, "real/A.java", "class A {}")
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "alias")))

	content, err := tool.Read("alias/A.java")
	require.NoError(t, err)
	assert.Equal(t, "class A {}", content)

	_, rel, err := tool.Resolve("alias/A.java")
	require.NoError(t, err)
	assert.Equal(t, "real/A.java", rel)
}

func TestResolve_AbsoluteInsideRoot(t *testing.T) {
	tool, root := newTool(t)
	_, rel, err := tool.Resolve(filepath.Join(root, "src", "New.java"))
	require.NoError(t, err)
	assert.Equal(t, "src/New.java", rel)
}

func TestWriteRead_RoundTripWithBackup(t *testing.T) {
	tool, root := newTool(t)
	writeFile(t, root, "src/A.java", "original")

	res, err := tool.Write("src/A.java", "class A { void run() {} }\n", sandbox.ModeOverwrite)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "backup/test_20261019_083000/src/A.java", res.Backup)

	got, err := tool.Read("src/A.java")
	require.NoError(t, err)
	assert.Equal(t, "class A { void run() {} }\n", got)

	backup, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(res.Backup)))
	require.NoError(t, err)
	assert.Equal(t, "original", string(backup))
}

func TestWrite_CreatesParentsWithoutBackup(t *testing.T) {
	tool, root := newTool(t)
	res, err := tool.Write("deep/nested/dir/B.java", "class B {}", "")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Empty(t, res.Backup)

	_, err = os.Stat(filepath.Join(root, "backup"))
	assert.True(t, os.IsNotExist(err))
}

func TestWrite_Append(t *testing.T) {
	tool, root := newTool(t)
	writeFile(t, root, "log.txt", "one\n")

	res, err := tool.Write("log.txt", "two\n", sandbox.ModeAppend)
	require.NoError(t, err)
	assert.Equal(t, "+1 -0 lines", res.Summary)

	got, err := tool.Read("log.txt")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", got)
}

func TestWrite_BadMode(t *testing.T) {
	tool, _ := newTool(t)
	_, err := tool.Write("a.txt", "x", "truncate")
	assert.True(t, errors.Is(err, domain.ErrValue))
}

func TestRead_NotFound(t *testing.T) {
	tool, _ := newTool(t)
	_, err := tool.Read("missing.txt")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRead_LegacyEncodingFallback(t *testing.T) {
	tool, root := newTool(t)
	// "中文" in GB18030.
	require.NoError(t, os.WriteFile(filepath.Join(root, "zh.txt"), []byte{0xD6, 0xD0, 0xCE, 0xC4}, 0644))

	got, err := tool.Read("zh.txt")
	require.NoError(t, err)
	assert.Equal(t, "中文", got)
}

func TestRead_Windows1252Fallback(t *testing.T) {
	root := t.TempDir()
	tool, err := sandbox.New(root, sandbox.Options{LegacyEncoding: "windows-1252"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "fr.txt"), []byte("caf\xe9"), 0644))

	got, err := tool.Read("fr.txt")
	require.NoError(t, err)
	assert.Equal(t, "café", got)
}

func TestReplace_LastKeepsEarlierOccurrence(t *testing.T) {
	tool, root := newTool(t)
	writeFile(t, root, "A.java", "call(); call();")

	res, err := tool.Replace("A.java", "call();", "call(); audit();", sandbox.OccurrenceLast)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Replaced)

	got, err := tool.Read("A.java")
	require.NoError(t, err)
	assert.Equal(t, "call(); call(); audit();", got)

	backup, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(res.Backup)))
	require.NoError(t, err)
	assert.Equal(t, "call(); call();", string(backup))
}

func TestReplace_FirstAndAll(t *testing.T) {
	tool, root := newTool(t)
	writeFile(t, root, "a.txt", "x-x-x")

	res, err := tool.Replace("a.txt", "x", "y", sandbox.OccurrenceFirst)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Replaced)
	got, _ := tool.Read("a.txt")
	assert.Equal(t, "y-x-x", got)

	res, err = tool.Replace("a.txt", "x", "z", sandbox.OccurrenceAll)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Replaced)
	got, _ = tool.Read("a.txt")
	assert.Equal(t, "y-z-z", got)
}

func TestReplace_Errors(t *testing.T) {
	tool, root := newTool(t)
	writeFile(t, root, "a.txt", "hello")

	_, err := tool.Replace("missing.txt", "a", "b", sandbox.OccurrenceFirst)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = tool.Replace("a.txt", "absent", "b", sandbox.OccurrenceFirst)
	assert.True(t, errors.Is(err, domain.ErrValue))

	_, err = tool.Replace("a.txt", "", "b", sandbox.OccurrenceFirst)
	assert.True(t, errors.Is(err, domain.ErrValue))

	_, err = tool.Replace("a.txt", "hello", "b", "middle")
	assert.True(t, errors.Is(err, domain.ErrValue))

	// Failed replacements leave no backup behind.
	_, err = os.Stat(filepath.Join(root, "backup"))
	assert.True(t, os.IsNotExist(err))
}

func TestList(t *testing.T) {
	tool, root := newTool(t)
	writeFile(t, root, "src/main/java/app/dto/UserDto.java", "")
	writeFile(t, root, "src/main/java/app/rest/UserController.java", "")
	writeFile(t, root, "src/main/resources/app.yml", "")
	writeFile(t, root, "README.md", "")

	files, err := tool.List("src", "*.java")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"src/main/java/app/dto/UserDto.java",
		"src/main/java/app/rest/UserController.java",
	}, files)

	files, err = tool.List(".", "**/dto/*.java")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main/java/app/dto/UserDto.java"}, files)

	files, err = tool.List("", "")
	require.NoError(t, err)
	assert.Len(t, files, 4)

	_, err = tool.List("nope", "*")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = tool.List("README.md", "*")
	assert.True(t, errors.Is(err, domain.ErrValue))
}

func TestList_ExcludesBackups(t *testing.T) {
	tool, root := newTool(t)
	writeFile(t, root, "A.java", "v1")
	_, err := tool.Write("A.java", "v2", sandbox.ModeOverwrite)
	require.NoError(t, err)

	files, err := tool.List(".", "*.java")
	require.NoError(t, err)
	assert.Equal(t, []string{"A.java"}, files)
}

func TestExistsAndMkdir(t *testing.T) {
	tool, _ := newTool(t)
	assert.False(t, tool.Exists("a/b/c"))

	rel, err := tool.Mkdir("a/b/c")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c", rel)
	assert.True(t, tool.Exists("a/b/c"))

	_, err = tool.Mkdir("a/b/c")
	assert.NoError(t, err)

	assert.False(t, tool.Exists(""))
}

func TestBackup(t *testing.T) {
	tool, root := newTool(t)
	_, err := tool.Backup("missing.txt")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	writeFile(t, root, "pkg/a.txt", "data")
	rel, err := tool.Backup("pkg/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "backup/test_20261019_083000/pkg/a.txt", rel)
	assert.Equal(t, filepath.Join(root, "backup", "test_20261019_083000"), tool.BackupDir())
}

func TestConcurrentWritesToSamePath(t *testing.T) {
	tool, _ := newTool(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tool.Write("shared.txt", fmt.Sprintf("line %d\n", i), sandbox.ModeAppend)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := tool.Read("shared.txt")
	require.NoError(t, err)
	assert.Len(t, splitLines(got), 20)
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

func TestExecute_Dispatch(t *testing.T) {
	tool, root := newTool(t)
	ctx := context.Background()
	writeFile(t, root, "A.java", "class A {}")

	out, err := tool.Execute(ctx, sandbox.ToolReadFile, map[string]any{"file_path": "A.java"})
	require.NoError(t, err)
	assert.Equal(t, "class A {}", out.Output)
	assert.Empty(t, out.Changed)

	out, err = tool.Execute(ctx, sandbox.ToolWriteFile, map[string]any{"file_path": "B.java", "content": "class B {}"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B.java"}, out.Changed)

	out, err = tool.Execute(ctx, sandbox.ToolReplaceText, map[string]any{
		"file_path": "B.java", "old_text": "{}", "new_text": "{ int x; }", "occurrence": "LAST",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B.java"}, out.Changed)
	assert.Contains(t, out.Output, "replaced 1 occurrence(s) in B.java")

	out, err = tool.Execute(ctx, sandbox.ToolFileExists, map[string]any{"file_path": "B.java"})
	require.NoError(t, err)
	assert.Equal(t, "true", out.Output)

	out, err = tool.Execute(ctx, sandbox.ToolListFiles, map[string]any{"pattern": "*.java"})
	require.NoError(t, err)
	assert.Equal(t, "A.java\nB.java", out.Output)

	out, err = tool.Execute(ctx, sandbox.ToolCreateDirectory, map[string]any{"directory": "gen"})
	require.NoError(t, err)
	assert.Contains(t, out.Output, "gen")

	out, err = tool.Execute(ctx, sandbox.ToolBackupFile, map[string]any{"file_path": "A.java"})
	require.NoError(t, err)
	assert.Contains(t, out.Output, "backup/test_20261019_083000/A.java")
}

func TestExecute_Errors(t *testing.T) {
	tool, _ := newTool(t)
	ctx := context.Background()

	_, err := tool.Execute(ctx, "delete_file", map[string]any{"file_path": "A.java"})
	assert.True(t, errors.Is(err, domain.ErrUnknownTool))

	_, err = tool.Execute(ctx, sandbox.ToolWriteFile, map[string]any{"file_path": "A.java"})
	assert.True(t, errors.Is(err, domain.ErrValue))

	_, err = tool.Execute(ctx, sandbox.ToolReadFile, map[string]any{})
	assert.True(t, errors.Is(err, domain.ErrValue))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = tool.Execute(cancelled, sandbox.ToolReadFile, map[string]any{"file_path": "A.java"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSchemas(t *testing.T) {
	tool, _ := newTool(t)
	var names []string
	for _, s := range tool.Schemas() {
		names = append(names, s.Name)
		assert.NotEmpty(t, s.Description)
	}
	assert.Equal(t, []string{
		"read_file", "write_file", "replace_text", "list_files",
		"file_exists", "create_directory", "backup_file",
	}, names)
}
