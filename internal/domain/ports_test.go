package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanResult_AddFile_Source(t *testing.T) {
	s := &ScanResult{}
	s.AddFile("src/main/java/com/acme/Order.java")
	s.AddFile("internal/order/service.go")
	s.AddFile("app/src/main/kotlin/com/acme/Thing.kt")
	assert.Len(t, s.SourceFiles, 3)
	assert.Len(t, s.AllFiles, 3)
}

func TestScanResult_AddFile_TestSourcesSkipped(t *testing.T) {
	s := &ScanResult{}
	s.AddFile("internal/order/service_test.go")
	s.AddFile("src/test/java/com/acme/OrderTest.java")
	assert.Empty(t, s.SourceFiles)
	assert.Len(t, s.AllFiles, 2)
}

func TestScanResult_AddFile_Resources(t *testing.T) {
	s := &ScanResult{}
	s.AddFile("src/main/resources/application.yml")
	s.AddFile("mapper/OrderMapper.xml")
	s.AddFile("docs/diagram.xml")
	assert.Equal(t, []string{"src/main/resources/application.yml", "mapper/OrderMapper.xml"}, s.ResourceFiles)
}

func TestScanResult_AddFile_BuildFiles(t *testing.T) {
	s := &ScanResult{}
	s.AddFile("go.mod")
	s.AddFile("billing/pom.xml")
	assert.Equal(t, []string{"go.mod"}, s.GoModFiles)
	assert.Equal(t, []string{"billing/pom.xml"}, s.BuildFiles)
}

func TestSourceLanguage(t *testing.T) {
	assert.Equal(t, "java", SourceLanguage("A.java"))
	assert.Equal(t, "kotlin", SourceLanguage("A.kt"))
	assert.Equal(t, "go", SourceLanguage("a.go"))
	assert.Equal(t, "", SourceLanguage("a.py"))
}
