package library

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
)

// Storage backend names.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Options configure a LibraryManager. Zero values fall back to the JSON backend, the
// default rules, the wall clock and ULID loan references.
type Options struct {
	Backend string
	DataDir string
	Strict  bool
	Rules   Rules
	Clock   Clock
	IDs     IDGen
	Logger  zerolog.Logger
}

// LibraryManager builds every repository once and hands the same instances to whoever
// needs them.
type LibraryManager struct {
	backend  Backend
	catalog  *Catalog
	accounts *Directory
	lending  *Lending
}

// OpenBackend opens the named storage backend under dataDir.
func OpenBackend(kind, dataDir string) (Backend, error) {
	switch kind {
	case "", BackendJSON:
		return NewFileStore(dataDir)
	case BackendSQLite:
		return NewDatabase(filepath.Join(dataDir, "library.db"))
	case BackendBolt:
		return OpenBoltStore(filepath.Join(dataDir, "library.bolt"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

// NewLibraryManager opens the configured backend and loads the collections.
func NewLibraryManager(opts Options) (*LibraryManager, error) {
	backend, err := OpenBackend(opts.Backend, opts.DataDir)
	if err != nil {
		return nil, err
	}
	lm, err := NewLibraryManagerWithBackend(backend, opts)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return lm, nil
}

// NewLibraryManagerWithBackend loads the collections from an already open backend.
func NewLibraryManagerWithBackend(backend Backend, opts Options) (*LibraryManager, error) {
	if opts.Rules == (Rules{}) {
		opts.Rules = DefaultRules
	}
	if opts.Clock == nil {
		opts.Clock = RealClock
	}
	if opts.IDs == nil {
		opts.IDs = ULIDGen
	}
	log := opts.Logger

	books := NewCollection(backend, BooksCollection,
		func(b Book) string { return b.ISBN },
		CollectionConfig{Strict: opts.Strict, Logger: log})
	students := NewCollection(backend, StudentsCollection,
		func(s Student) string { return strconv.Itoa(s.ID) },
		CollectionConfig{Strict: opts.Strict, Logger: log})
	// Admin records share the student layout. Records with any other key are skipped.
	admins := NewCollection(backend, AdminsCollection,
		func(a Student) string { return a.Login },
		CollectionConfig{
			ReadOnly:            true,
			Strict:              opts.Strict,
			RejectUnknownFields: true,
			SkipInvalidRecords:  true,
			Logger:              log,
		})

	catalog, err := NewCatalog(books, opts.Rules, opts.Clock, log)
	if err != nil {
		return nil, err
	}
	accounts, err := NewDirectory(students, admins, log)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{
		backend:  backend,
		catalog:  catalog,
		accounts: accounts,
		lending:  NewLending(catalog, accounts, opts.Rules, opts.Clock, opts.IDs, log),
	}, nil
}

// Close closes the underlying backend.
func (lm *LibraryManager) Close() error { return lm.backend.Close() }

func (lm *LibraryManager) Catalog() *Catalog    { return lm.catalog }
func (lm *LibraryManager) Accounts() *Directory { return lm.accounts }
func (lm *LibraryManager) Lending() *Lending    { return lm.lending }
