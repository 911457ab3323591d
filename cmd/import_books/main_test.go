package main

import (
	"os"
	"testing"

	"library-lending/library"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestCatalog(t *testing.T) *library.Catalog {
	t.Helper()
	mgr, err := library.NewLibraryManager(library.Options{DataDir: t.TempDir(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr.Catalog()
}

func TestImportBook(t *testing.T) {
	catalog := newTestCatalog(t)
	dune := seedBook{Title: "Dune", Author: "Frank Herbert", ISBN: "111", Copies: 2, Year: "1965"}

	isNew, detail, err := importBook(catalog, dune)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "ID: 1", detail)

	isNew, detail, err = importBook(catalog, dune)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "+2 copies", detail)

	b, err := catalog.Book("111")
	require.NoError(t, err)
	assert.Equal(t, 4, b.Copies)
}

func TestImportBookWithoutCopies(t *testing.T) {
	catalog := newTestCatalog(t)
	emma := seedBook{Title: "Emma", Author: "Jane Austen", ISBN: " 222 ", Copies: 0, Year: "1815"}

	isNew, _, err := importBook(catalog, emma)
	require.NoError(t, err)
	assert.True(t, isNew)

	b, err := catalog.Book("222")
	require.NoError(t, err)
	assert.Equal(t, "Emma", b.Title)
	assert.Equal(t, 0, b.Copies)

	// A known title with nothing to add is left alone.
	isNew, detail, err := importBook(catalog, emma)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "already catalogued", detail)
	assert.Len(t, catalog.ListAll(), 1)
}

func TestImportBookInvalid(t *testing.T) {
	catalog := newTestCatalog(t)

	_, _, err := importBook(catalog, seedBook{Title: "No ISBN", Copies: 1})
	assert.ErrorIs(t, err, library.ErrInvalidValue)

	_, _, err = importBook(catalog, seedBook{Title: "Negative", ISBN: "333", Copies: -1})
	assert.ErrorIs(t, err, library.ErrInvalidValue)
	assert.Empty(t, catalog.ListAll())
}

func TestSeedFileParses(t *testing.T) {
	raw, err := os.ReadFile("books.yaml")
	require.NoError(t, err)

	var seed seedFile
	require.NoError(t, yaml.Unmarshal(raw, &seed))
	require.NotEmpty(t, seed.Books)

	catalog := newTestCatalog(t)
	for _, b := range seed.Books {
		_, _, err := importBook(catalog, b)
		require.NoError(t, err, b.Title)
	}
	assert.NotEmpty(t, catalog.ListAll())
}
