package library

import (
	"errors"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAvailable(t *testing.T) {
	lm := newManager(t)

	_, err := lm.Catalog().ListAvailable()
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	seedBook(t, lm, "111", "Dune", 2)
	seedBook(t, lm, "222", "Emma", 0)
	seedBook(t, lm, "333", "Ulysses", 1)

	got, err := lm.Catalog().ListAvailable()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "111", got[0].ISBN)
	assert.Equal(t, "333", got[1].ISBN)
	assert.Equal(t, "Author of Dune", got[0].Author)

	assert.Len(t, lm.Catalog().ListAll(), 3)
}

func TestListAvailableAllLent(t *testing.T) {
	lm := newManager(t)
	seedBook(t, lm, "111", "Dune", 0)

	_, err := lm.Catalog().ListAvailable()
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestAddCopies(t *testing.T) {
	lm := newManager(t)
	seedBook(t, lm, "111", "Dune", 1)

	n, err := lm.Catalog().AddCopies("111", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	b, err := lm.Catalog().Book("111")
	require.NoError(t, err)
	assert.Equal(t, 4, b.Copies)

	_, err = lm.Catalog().AddCopies("999", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = lm.Catalog().AddCopies("111", 0)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestCreateBookAssignsIDs(t *testing.T) {
	lm := newManager(t)
	a := seedBook(t, lm, "111", "Dune", 1)
	b := seedBook(t, lm, "222", "Emma", 1)
	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.NotNil(t, a.History)
	assert.Empty(t, a.History)

	_, err := lm.Catalog().RemoveBook("111")
	require.NoError(t, err)

	// Ids keep growing after a removal instead of reusing the count.
	c := seedBook(t, lm, "333", "Ulysses", 1)
	assert.Equal(t, 3, c.ID)

	_, err = lm.Catalog().CreateBook(NewBook{Title: "Again", ISBN: "222"})
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = lm.Catalog().CreateBook(NewBook{Title: "No isbn"})
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = lm.Catalog().CreateBook(NewBook{Title: "Negative", ISBN: "444", Copies: -1})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestCatalogPersists(t *testing.T) {
	dir := t.TempDir()
	lm := openManager(t, BackendJSON, dir)
	seedBook(t, lm, "111", "Dune", 2)
	_, err := lm.Catalog().AddCopies("111", 1)
	require.NoError(t, err)
	require.NoError(t, lm.Close())

	reopened := openManager(t, BackendJSON, dir)
	b, err := reopened.Catalog().Book("111")
	require.NoError(t, err)
	assert.Equal(t, 3, b.Copies)
	assert.Equal(t, "Dune", b.Title)
}

func TestRemoveBook(t *testing.T) {
	lm := newManager(t)
	seedBook(t, lm, "111", "Dune", 1)

	removed, err := lm.Catalog().RemoveBook("111")
	require.NoError(t, err)
	assert.Equal(t, "Dune", removed.Title)
	assert.Empty(t, lm.Catalog().ListAll())

	_, err = lm.Catalog().RemoveBook("111")
	assert.ErrorIs(t, err, ErrNotFound)
}

// failingSaves refuses every Save once fail is set.
type failingSaves struct {
	Backend
	fail bool
}

func (f *failingSaves) Save(collection string, records []jsoniter.RawMessage) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Backend.Save(collection, records)
}

func TestRemoveBookKeepsCatalogOnSaveFailure(t *testing.T) {
	backend := &failingSaves{Backend: openBackend(t, BackendJSON, t.TempDir())}
	lm, err := NewLibraryManagerWithBackend(backend, testOptions(BackendJSON, ""))
	require.NoError(t, err)
	seedBook(t, lm, "111", "Dune", 1)
	seedBook(t, lm, "222", "Emma", 2)

	backend.fail = true
	_, err = lm.Catalog().RemoveBook("111")
	require.Error(t, err)

	books := lm.Catalog().ListAll()
	require.Len(t, books, 2)
	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, "Emma", books[1].Title)

	backend.fail = false
	_, err = lm.Catalog().RemoveBook("111")
	require.NoError(t, err)
	books = lm.Catalog().ListAll()
	require.Len(t, books, 1)
	assert.Equal(t, "Emma", books[0].Title)
}

func TestEditField(t *testing.T) {
	tests := []struct {
		name    string
		id      int
		field   string
		value   string
		wantErr error
		check   func(t *testing.T, b Book)
	}{
		{name: "title", id: 1, field: "title", value: "Dune Messiah", check: func(t *testing.T, b Book) {
			assert.Equal(t, "Dune Messiah", b.Title)
		}},
		{name: "copies", id: 1, field: "copies", value: "5", check: func(t *testing.T, b Book) {
			assert.Equal(t, 5, b.Copies)
		}},
		{name: "field name is case-insensitive", id: 1, field: "Year", value: "1965", check: func(t *testing.T, b Book) {
			assert.Equal(t, "1965", b.Year)
		}},
		{name: "new id", id: 1, field: "id", value: "10", check: func(t *testing.T, b Book) {
			assert.Equal(t, 10, b.ID)
		}},
		{name: "new isbn", id: 1, field: "isbn", value: "999", check: func(t *testing.T, b Book) {
			assert.Equal(t, "999", b.ISBN)
		}},
		{name: "copies not a number", id: 1, field: "copies", value: "lots", wantErr: ErrInvalidValue},
		{name: "negative copies", id: 1, field: "copies", value: "-1", wantErr: ErrInvalidValue},
		{name: "id not a number", id: 1, field: "id", value: "x", wantErr: ErrInvalidValue},
		{name: "id taken", id: 1, field: "id", value: "2", wantErr: ErrInvalidValue},
		{name: "isbn taken", id: 1, field: "isbn", value: "222", wantErr: ErrInvalidValue},
		{name: "history not editable", id: 1, field: "history", value: "[]", wantErr: ErrInvalidValue},
		{name: "unknown book", id: 42, field: "title", value: "x", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			lm := openManager(t, BackendJSON, dir)
			before := seedBook(t, lm, "111", "Dune", 1)
			seedBook(t, lm, "222", "Emma", 1)

			b, err := lm.Catalog().EditField(tt.id, tt.field, tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				unchanged, err := lm.Catalog().Book("111")
				require.NoError(t, err)
				assert.Equal(t, before, unchanged)
				return
			}
			require.NoError(t, err)
			tt.check(t, b)

			require.NoError(t, lm.Close())
			reopened := openManager(t, BackendJSON, dir)
			stored, err := reopened.Catalog().BookByID(b.ID)
			require.NoError(t, err)
			assert.Equal(t, b, stored)
		})
	}
}

func TestBorrowHistory(t *testing.T) {
	lm := newManager(t)
	seedBook(t, lm, "111", "Dune", 1)
	seedBook(t, lm, "222", "Emma", 1)

	_, err := lm.Catalog().BorrowHistory()
	assert.ErrorIs(t, err, ErrEmptyCollection)

	_, err = lm.Catalog().RecordReturn("222", BorrowRecord{Login: "annaMartin1", LoanDate: daysAgo(3)})
	require.NoError(t, err)

	books, err := lm.Catalog().BorrowHistory()
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "222", books[0].ISBN)
	assert.Equal(t, daysAgo(0), books[0].History[0].ReturnDate)
	assert.Equal(t, 2, books[0].Copies)
}

func TestAdjustCopiesNeverNegative(t *testing.T) {
	lm := newManager(t)
	seedBook(t, lm, "111", "Dune", 1)

	b, err := lm.Catalog().AdjustCopies("111", -1)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Copies)

	_, err = lm.Catalog().AdjustCopies("111", -1)
	assert.ErrorIs(t, err, ErrNoCopies)

	b, err = lm.Catalog().Book("111")
	require.NoError(t, err)
	assert.Equal(t, 0, b.Copies)
}
