package e2e_test

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layerforge/layerforge/internal/domain"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build binary before running tests
	dir, err := os.MkdirTemp("", "layerforge-e2e")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	binaryPath = filepath.Join(dir, "layerforge")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/layerforge")
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("build failed: " + string(out))
	}

	os.Exit(m.Run())
}

// copyFixture returns a writable copy of the Java fixture.
func copyFixture(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "shop")
	require.NoError(t, os.CopyFS(root, os.DirFS("../../testdata/java-ddd")))
	return root
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// run executes the binary with extra environment and returns stdout, stderr
// and the exit code.
func run(t *testing.T, env []string, args ...string) (string, string, int) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "LAYERFORGE_MODEL=")
	cmd.Env = append(cmd.Env, env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
	}
	return stdout.String(), stderr.String(), exitCode
}

// --- Scan Tests ---

func TestE2E_ScanJSON(t *testing.T) {
	out, _, code := run(t, nil, "scan", copyFixture(t), "--json")
	assert.Equal(t, 0, code)

	var st domain.ProjectStructure
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "com.acme.shop", st.RootNamespace)
	assert.Len(t, st.Controllers, 3)
	assert.Len(t, st.DataAccess, 1)
}

func TestE2E_ScanMissingProject(t *testing.T) {
	out, _, code := run(t, nil, "scan", filepath.Join(t.TempDir(), "absent"), "--json")
	assert.Equal(t, 0, code, "a missing root degrades to an empty structure")

	var st domain.ProjectStructure
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.NotEmpty(t, st.Warnings)
}

// --- Generate Tests ---

func TestE2E_GenerateWithScriptedModel(t *testing.T) {
	root := copyFixture(t)
	controller := "src/main/java/com/acme/shop/interfaces/rest/OrderController.java"
	script := writeScript(t, `steps:
  - text: '{"decisions": [{"layer": "controller", "action": "enhance_existing", "target": "OrderController"}]}'
  - tool_calls:
      - name: replace_text
        arguments:
          file_path: `+controller+`
          old_text: "}"
          new_text: "    // refund endpoint\n}"
          occurrence: last
  - text: added refund endpoint
`)

	out, stderr, code := run(t, []string{"LAYERFORGE_MODEL=scripted:" + script},
		"generate", root, "--keyword", "order refund", "--layers", "controller", "--json", "--strict")
	require.Equal(t, 0, code, stderr)

	var report domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Success)
	assert.Equal(t, []string{controller}, report.WrittenFiles())

	data, err := os.ReadFile(filepath.Join(root, controller))
	require.NoError(t, err)
	assert.Contains(t, string(data), "// refund endpoint")

	backups, err := filepath.Glob(filepath.Join(root, "backup", "*", controller))
	require.NoError(t, err)
	assert.Len(t, backups, 1, "the controller is backed up before it is edited")

	out, _, code = run(t, nil, "history", root)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "order refund")
}

func TestE2E_GenerateStrictFailure(t *testing.T) {
	script := writeScript(t, "steps:\n  - error: connection refused\n")
	_, stderr, code := run(t, []string{"LAYERFORGE_MODEL=scripted:" + script},
		"generate", copyFixture(t), "--keyword", "order refund", "--layers", "dto", "--strict")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "committed no changes")
}

// --- Version Test ---

func TestE2E_Version(t *testing.T) {
	out, _, code := run(t, nil, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "layerforge")
}

func TestE2E_UnknownCommand(t *testing.T) {
	_, stderr, code := run(t, nil, "score")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown command")
}
