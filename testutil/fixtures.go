// Package testutil holds fixtures and fakes shared by package tests.
//
// The people fixture is a small catalog with Person and Address types, a
// dataset of three people who know each other, and a hand-written schema over
// the same catalog.
package testutil

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360/semql/agora/memory"
	"github.com/c360/semql/fountain"
)

// Embedded people fixture.
var (
	//go:embed testdata/catalog.yaml
	CatalogYAML []byte

	//go:embed testdata/people.yaml
	PeopleYAML []byte

	//go:embed testdata/schema.graphqls
	SchemaSDL string
)

// Gateway builds an in-memory gateway from a catalog and a dataset document.
func Gateway(t testing.TB, catalogYAML, datasetYAML []byte) (*fountain.Memory, *memory.Gateway) {
	t.Helper()
	catalog, err := fountain.Parse(catalogYAML)
	require.NoError(t, err)
	ds, err := memory.ParseDataset(datasetYAML)
	require.NoError(t, err)
	gw, err := memory.FromDataset(context.Background(), catalog, ds, nil)
	require.NoError(t, err)
	return catalog, gw
}

// People returns the catalog and gateway of the people fixture.
func People(t testing.TB) (*fountain.Memory, *memory.Gateway) {
	t.Helper()
	return Gateway(t, CatalogYAML, PeopleYAML)
}

// WriteFixtures writes the people fixture to a temporary directory and
// returns the absolute catalog and dataset paths.
func WriteFixtures(t testing.TB) (catalogPath, datasetPath string) {
	t.Helper()
	dir := t.TempDir()
	catalogPath = filepath.Join(dir, "catalog.yaml")
	datasetPath = filepath.Join(dir, "people.yaml")
	require.NoError(t, os.WriteFile(catalogPath, CatalogYAML, 0o644))
	require.NoError(t, os.WriteFile(datasetPath, PeopleYAML, 0o644))
	return catalogPath, datasetPath
}
