package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBackend(t *testing.T, kind, dir string) Backend {
	t.Helper()
	b, err := OpenBackend(kind, dir)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func bookCollection(b Backend, cfg CollectionConfig) *Collection[Book] {
	return NewCollection(b, BooksCollection, func(x Book) string { return x.ISBN }, cfg)
}

var sampleBooks = []Book{
	{
		ID: 1, Title: "Les Misérables", Author: "Victor Hugo", Publisher: "Lacroix",
		ISBN: "978-2", Copies: 2, Year: "1862",
		History: []BorrowRecord{{Ref: "r1", Login: "annaMüller1", Name: "anna", Surname: "müller", LoanDate: "2024-01-02", ReturnDate: "2024-01-05"}},
	},
	{ID: 2, Title: "Tom & Jerry <3", Author: "Hanna", ISBN: "111", Copies: 0, Year: "1940", History: []BorrowRecord{}},
	{ID: 3, Title: "東京物語", Author: "Ozu", ISBN: "222", Copies: 1, Year: "1953", History: []BorrowRecord{}},
}

func TestCollectionRoundTrip(t *testing.T) {
	for _, kind := range []string{BackendJSON, BackendSQLite, BackendBolt} {
		t.Run(kind, func(t *testing.T) {
			books := bookCollection(openBackend(t, kind, t.TempDir()), CollectionConfig{Logger: zerolog.Nop()})

			require.NoError(t, books.SaveAll(sampleBooks))
			got, err := books.LoadAll()
			require.NoError(t, err)
			assert.Equal(t, sampleBooks, got)

			// Saving a shorter collection drops the tail.
			require.NoError(t, books.SaveAll(sampleBooks[:1]))
			got, err = books.LoadAll()
			require.NoError(t, err)
			assert.Equal(t, sampleBooks[:1], got)
		})
	}
}

func TestCollectionUpsert(t *testing.T) {
	for _, kind := range []string{BackendJSON, BackendSQLite, BackendBolt} {
		t.Run(kind, func(t *testing.T) {
			books := bookCollection(openBackend(t, kind, t.TempDir()), CollectionConfig{Logger: zerolog.Nop()})
			require.NoError(t, books.SaveAll(sampleBooks))

			changed := sampleBooks[1]
			changed.Copies = 7
			require.NoError(t, books.Upsert(changed))

			added := Book{ID: 4, Title: "New", ISBN: "333", History: []BorrowRecord{}}
			require.NoError(t, books.Upsert(added))

			got, err := books.LoadAll()
			require.NoError(t, err)
			require.Len(t, got, 4)
			assert.Equal(t, 7, got[1].Copies)
			assert.Equal(t, sampleBooks[0], got[0])
			assert.Equal(t, added, got[3])
		})
	}
}

func TestFileStoreKeepsTextUnescaped(t *testing.T) {
	dir := t.TempDir()
	books := bookCollection(openBackend(t, BackendJSON, dir), CollectionConfig{Logger: zerolog.Nop()})
	require.NoError(t, books.SaveAll(sampleBooks))

	raw, err := os.ReadFile(filepath.Join(dir, "books.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Les Misérables")
	assert.Contains(t, string(raw), "Tom & Jerry <3")
	assert.Contains(t, string(raw), "東京物語")
	assert.NotContains(t, string(raw), `\u`)
}

func TestLoadAllLeniency(t *testing.T) {
	tests := []struct {
		name    string
		content string // empty means no file
		strict  bool
		wantErr error
		wantLen int
	}{
		{name: "missing file", wantLen: 0},
		{name: "missing file strict", strict: true, wantLen: 0},
		{name: "empty file", content: "   \n", wantLen: 0},
		{name: "malformed json", content: "[{\"isbn\": ", wantLen: 0},
		{name: "malformed json strict", content: "[{\"isbn\": ", strict: true, wantErr: ErrCorrupt},
		{name: "object instead of array strict", content: `{"isbn":"1"}`, strict: true, wantErr: ErrCorrupt},
		{name: "wrong field type strict", content: `[{"isbn":"1","copies":"two"}]`, strict: true, wantErr: ErrCorrupt},
		{name: "wrong field type", content: `[{"isbn":"1","copies":"two"}]`, wantLen: 0},
		{name: "valid", content: `[{"id":1,"isbn":"1","copies":2}]`, strict: true, wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.content != "" {
				writeFile(t, dir, "books.json", tt.content)
			}
			books := bookCollection(openBackend(t, BackendJSON, dir), CollectionConfig{Strict: tt.strict, Logger: zerolog.Nop()})

			got, err := books.LoadAll()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestReadOnlyCollection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "admins.json", `[{"id":1,"name":"root","surname":"admin","login":"admin","password":"pw","email":"a@b.fr"}]`)
	admins := NewCollection(openBackend(t, BackendJSON, dir), AdminsCollection,
		func(a Admin) string { return a.Login },
		CollectionConfig{ReadOnly: true, RejectUnknownFields: true, Logger: zerolog.Nop()})

	got, err := admins.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "admin", got[0].Login)

	assert.ErrorIs(t, admins.SaveAll(got), ErrReadOnly)
	assert.ErrorIs(t, admins.Upsert(Admin{Account: Account{Login: "intruder"}}), ErrReadOnly)

	raw, err := os.ReadFile(filepath.Join(dir, "admins.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "intruder")
}

func TestAdminUnknownFieldsRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "admins.json", `[{"id":1,"login":"admin","password":"pw","role":"superuser"}]`)
	backend := openBackend(t, BackendJSON, dir)
	key := func(a Admin) string { return a.Login }

	strict := NewCollection(backend, AdminsCollection, key,
		CollectionConfig{ReadOnly: true, Strict: true, RejectUnknownFields: true, Logger: zerolog.Nop()})
	_, err := strict.LoadAll()
	assert.ErrorIs(t, err, ErrCorrupt)

	lenient := NewCollection(backend, AdminsCollection, key,
		CollectionConfig{ReadOnly: true, RejectUnknownFields: true, Logger: zerolog.Nop()})
	got, err := lenient.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSkipInvalidRecords(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "admins.json", `[
		{"id":1,"login":"admin","password":"pw"},
		{"id":2,"login":"rogue","password":"pw","role":"superuser"},
		{"id":3,"login":"chief","password":"pw"}
	]`)
	admins := NewCollection(openBackend(t, BackendJSON, dir), AdminsCollection,
		func(a Admin) string { return a.Login },
		CollectionConfig{ReadOnly: true, Strict: true, RejectUnknownFields: true, SkipInvalidRecords: true, Logger: zerolog.Nop()})

	got, err := admins.LoadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "admin", got[0].Login)
	assert.Equal(t, "chief", got[1].Login)
}

func TestDatabaseReopenAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")

	db, err := NewDatabase(path)
	require.NoError(t, err)
	books := bookCollection(db, CollectionConfig{Logger: zerolog.Nop()})
	require.NoError(t, books.SaveAll(sampleBooks))
	n, err := db.RecordCount(BooksCollection)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, db.Close())

	// Migrations run again on open and must leave the data alone.
	db, err = NewDatabase(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	got, err := bookCollection(db, CollectionConfig{Logger: zerolog.Nop()}).LoadAll()
	require.NoError(t, err)
	assert.Equal(t, sampleBooks, got)

	_, err = db.Load(StudentsCollection)
	assert.ErrorIs(t, err, ErrCollectionMissing)
}

func TestBoltStoreMissingAndEmpty(t *testing.T) {
	store := openBackend(t, BackendBolt, t.TempDir())

	_, err := store.Load(BooksCollection)
	assert.ErrorIs(t, err, ErrCollectionMissing)

	require.NoError(t, store.Save(BooksCollection, nil))
	records, err := store.Load(BooksCollection)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestOpenBackendUnknownKind(t *testing.T) {
	_, err := OpenBackend("csv", t.TempDir())
	assert.Error(t, err)
}
