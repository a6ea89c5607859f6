package application_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layerforge/layerforge/internal/adapters/outbound/detector"
	"github.com/layerforge/layerforge/internal/adapters/outbound/parser"
	"github.com/layerforge/layerforge/internal/adapters/outbound/scanner"
	"github.com/layerforge/layerforge/internal/application"
	"github.com/layerforge/layerforge/internal/domain"
)

const javaFixture = "../../testdata/java-ddd"

func newScanService() *application.ScanService {
	return application.NewScanService(scanner.New(), detector.New(), parser.New(), nil)
}

// copyFixture gives a test its own writable copy of the Java fixture.
func copyFixture(t *testing.T) string {
	t.Helper()
	dst := filepath.Join(t.TempDir(), "shop")
	require.NoError(t, os.CopyFS(dst, os.DirFS(javaFixture)))
	return dst
}

func TestScan_JavaFixture(t *testing.T) {
	st := newScanService().Scan(javaFixture, domain.DefaultConfig().Scan)

	assert.Equal(t, "com.acme.shop", st.RootNamespace)
	assert.Equal(t, "java", st.Language)
	require.NotEmpty(t, st.SourceRoots)
	assert.Equal(t, "src/main/java", st.SourceRoots[0])
	assert.Len(t, st.Controllers, 3)
	assert.Len(t, st.ApplicationServices, 1)
	assert.Len(t, st.DomainServices, 1)
	assert.Len(t, st.DataAccess, 1)
	assert.Len(t, st.Entities, 1)
	assert.Len(t, st.DTOs, 1)
	assert.Len(t, st.ExternalClients, 1)
	assert.Equal(t, 1, st.Unclassified)
	assert.Contains(t, st.Resources, "src/main/resources/mapper/OrderMapper.xml")

	ctrl, ok := st.FindUnit(domain.LayerController, "OrderController")
	require.True(t, ok)
	assert.Equal(t, "src/main/java/com/acme/shop/interfaces/rest/OrderController.java", ctrl.Path)
	assert.Equal(t, "com.acme.shop.interfaces.rest", ctrl.Namespace)

	// Annotation wins over a service-looking package.
	_, ok = st.FindUnit(domain.LayerController, "LegacyStatusController")
	assert.True(t, ok)
}

func TestScan_UnitsSortedByPath(t *testing.T) {
	st := newScanService().Scan(javaFixture, domain.DefaultConfig().Scan)
	for i := 1; i < len(st.Controllers); i++ {
		assert.Less(t, st.Controllers[i-1].Path, st.Controllers[i].Path)
	}
}

func TestScan_MissingRootIsEmptyWithWarning(t *testing.T) {
	st := newScanService().Scan(filepath.Join(t.TempDir(), "missing"), domain.DefaultConfig().Scan)
	require.NotNil(t, st)
	assert.Zero(t, st.TotalUnits())
	assert.Empty(t, st.RootNamespace)
	require.Len(t, st.Warnings, 1)
	assert.Contains(t, st.Warnings[0], "scanning project")
}

func TestScan_GoModuleUsesModulePath(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"go.mod":                            "module example.com/shop\n\ngo 1.24\n",
		"internal/handler/order.go":         "package handler\n\ntype OrderHandler struct{}\n\nfunc (h *OrderHandler) Create() {}\n",
		"internal/repository/order_repo.go": "package repository\n\ntype OrderRepository interface{ Find() }\n",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	st := newScanService().Scan(root, domain.DefaultConfig().Scan)
	assert.Equal(t, "go", st.Language)
	assert.Equal(t, "example.com/shop", st.ModulePath)
	assert.Equal(t, "example.com/shop", st.RootNamespace)
	assert.Len(t, st.Controllers, 1)
	assert.Len(t, st.DataAccess, 1)
}
