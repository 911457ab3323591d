package library

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

// Collection names of the persisted state.
const (
	StudentsCollection = "students"
	BooksCollection    = "books"
	AdminsCollection   = "admins"
)

// Backend persists whole collections of encoded records, preserving their order.
// Load reports ErrCollectionMissing when nothing was ever saved under the name and
// ErrCorrupt when the stored bytes cannot be decoded.
type Backend interface {
	Load(collection string) ([]jsoniter.RawMessage, error)
	Save(collection string, records []jsoniter.RawMessage) error
	Close() error
}

// recordCodec keeps non-ASCII text and HTML characters as-is in the stored JSON.
var recordCodec = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

var strictRecordCodec = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	DisallowUnknownFields:  true,
}.Froze()

// CollectionConfig tunes how a Collection treats its backend.
type CollectionConfig struct {
	// ReadOnly rejects SaveAll and Upsert with ErrReadOnly.
	ReadOnly bool
	// Strict surfaces unreadable collections instead of loading them as empty.
	Strict bool
	// RejectUnknownFields fails decoding of records carrying fields the type does not declare.
	RejectUnknownFields bool
	// SkipInvalidRecords drops records that fail to decode, with a warning, instead of
	// failing the whole collection.
	SkipInvalidRecords bool
	Logger              zerolog.Logger
}

// Collection is a typed view over one named collection of a Backend.
type Collection[T any] struct {
	backend Backend
	name    string
	key     func(T) string
	codec   jsoniter.API
	cfg     CollectionConfig
	log     zerolog.Logger
}

// NewCollection binds name on backend. key extracts the field Upsert matches on.
func NewCollection[T any](backend Backend, name string, key func(T) string, cfg CollectionConfig) *Collection[T] {
	codec := recordCodec
	if cfg.RejectUnknownFields {
		codec = strictRecordCodec
	}
	return &Collection[T]{
		backend: backend,
		name:    name,
		key:     key,
		codec:   codec,
		cfg:     cfg,
		log:     cfg.Logger.With().Str("collection", name).Logger(),
	}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// LoadAll returns every record in stored order. A missing collection is empty. An
// unreadable one is empty too unless the collection is strict, and is logged either way.
func (c *Collection[T]) LoadAll() ([]T, error) {
	items, err := c.load()
	switch {
	case err == nil:
		return items, nil
	case errors.Is(err, ErrCollectionMissing):
		c.log.Debug().Msg("collection missing, starting empty")
		return []T{}, nil
	case c.cfg.Strict:
		return nil, err
	default:
		c.log.Warn().Err(err).Msg("collection unreadable, treating as empty")
		return []T{}, nil
	}
}

func (c *Collection[T]) load() ([]T, error) {
	records, err := c.backend.Load(c.name)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(records))
	for i, raw := range records {
		var item T
		if err := c.codec.Unmarshal(raw, &item); err != nil {
			if c.cfg.SkipInvalidRecords {
				c.log.Warn().Err(err).Int("record", i).Msg("skipping undecodable record")
				continue
			}
			return nil, fmt.Errorf("%w: %s record %d: %v", ErrCorrupt, c.name, i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// SaveAll replaces the stored collection with items.
func (c *Collection[T]) SaveAll(items []T) error {
	if c.cfg.ReadOnly {
		return fmt.Errorf("save %s: %w", c.name, ErrReadOnly)
	}
	records := make([]jsoniter.RawMessage, 0, len(items))
	for _, item := range items {
		raw, err := c.codec.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode %s: %w", c.name, err)
		}
		records = append(records, raw)
	}
	if err := c.backend.Save(c.name, records); err != nil {
		return fmt.Errorf("save %s: %w", c.name, err)
	}
	return nil
}

// Upsert replaces the first stored record whose key equals item's key, or appends item,
// then persists the full collection.
func (c *Collection[T]) Upsert(item T) error {
	if c.cfg.ReadOnly {
		return fmt.Errorf("upsert %s: %w", c.name, ErrReadOnly)
	}
	items, err := c.LoadAll()
	if err != nil {
		return err
	}
	key := c.key(item)
	replaced := false
	for i := range items {
		if c.key(items[i]) == key {
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, item)
	}
	return c.SaveAll(items)
}

// ---------------------------------------------------------------------------
// JSON file backend
// ---------------------------------------------------------------------------

// FileStore keeps each collection in <dir>/<collection>.json as a UTF-8 JSON array.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func (s *FileStore) Load(collection string) ([]jsoniter.RawMessage, error) {
	data, err := os.ReadFile(s.path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCollectionMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []jsoniter.RawMessage
	if err := recordCodec.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, collection, err)
	}
	return records, nil
}

// Save replaces the collection file through a temporary file and a rename.
func (s *FileStore) Save(collection string, records []jsoniter.RawMessage) error {
	if records == nil {
		records = []jsoniter.RawMessage{}
	}
	data, err := recordCodec.Marshal(records)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, collection+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(collection))
}

func (s *FileStore) Close() error { return nil }
