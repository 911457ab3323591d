package library

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Rules are the lending limits.
type Rules struct {
	MaxActiveLoans int
	OverdueDays    int
}

// DefaultRules allow three active loans, each for seven days.
var DefaultRules = Rules{MaxActiveLoans: 3, OverdueDays: 7}

// EditableFields lists the book fields EditField accepts.
var EditableFields = []string{"id", "title", "author", "publisher", "isbn", "copies", "year"}

// Catalog owns the book collection and the borrow history embedded in each book.
type Catalog struct {
	books *Collection[Book]
	list  []Book
	rules Rules
	clock Clock
	log   zerolog.Logger
}

// NewCatalog loads the book collection into memory.
func NewCatalog(books *Collection[Book], rules Rules, clock Clock, log zerolog.Logger) (*Catalog, error) {
	list, err := books.LoadAll()
	if err != nil {
		return nil, err
	}
	return &Catalog{
		books: books,
		list:  list,
		rules: rules,
		clock: clock,
		log:   log.With().Str("component", "catalog").Logger(),
	}, nil
}

func (c *Catalog) indexByISBN(isbn string) int {
	for i := range c.list {
		if c.list[i].ISBN == isbn {
			return i
		}
	}
	return -1
}

func (c *Catalog) indexByID(id int) int {
	for i := range c.list {
		if c.list[i].ID == id {
			return i
		}
	}
	return -1
}

// Book returns the book with the given ISBN.
func (c *Catalog) Book(isbn string) (Book, error) {
	i := c.indexByISBN(isbn)
	if i < 0 {
		return Book{}, fmt.Errorf("book %q: %w", isbn, ErrNotFound)
	}
	return c.list[i], nil
}

// BookByID returns the book with the given id.
func (c *Catalog) BookByID(id int) (Book, error) {
	i := c.indexByID(id)
	if i < 0 {
		return Book{}, fmt.Errorf("book id %d: %w", id, ErrNotFound)
	}
	return c.list[i], nil
}

// ListAvailable returns the books with at least one copy on the shelf.
func (c *Catalog) ListAvailable() ([]BookSummary, error) {
	var out []BookSummary
	for _, b := range c.list {
		if b.Copies > 0 {
			out = append(out, BookSummary{
				ID:      b.ID,
				Title:   b.Title,
				Author:  b.Author,
				ISBN:    b.ISBN,
				History: b.History,
			})
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyCatalog
	}
	return out, nil
}

// ListAll returns the whole catalog, unfiltered.
func (c *Catalog) ListAll() []Book {
	out := make([]Book, len(c.list))
	copy(out, c.list)
	return out
}

// BorrowHistory returns the books that have been borrowed and returned at least once.
func (c *Catalog) BorrowHistory() ([]Book, error) {
	var out []Book
	for _, b := range c.list {
		if len(b.History) > 0 {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyCollection
	}
	return out, nil
}

// AddCopies adds count copies to an existing title. It returns ErrNotFound when the
// ISBN is not catalogued so the caller can create the book instead.
func (c *Catalog) AddCopies(isbn string, count int) (int, error) {
	if count < 1 {
		return 0, fmt.Errorf("%w: copy count must be at least 1", ErrInvalidValue)
	}
	i := c.indexByISBN(isbn)
	if i < 0 {
		return 0, fmt.Errorf("book %q: %w", isbn, ErrNotFound)
	}
	c.list[i].Copies += count
	if err := c.books.Upsert(c.list[i]); err != nil {
		c.list[i].Copies -= count
		return 0, err
	}
	c.log.Info().Str("isbn", isbn).Int("added", count).Int("copies", c.list[i].Copies).Msg("copies added")
	return count, nil
}

// CreateBook catalogues a new title under the next free id.
func (c *Catalog) CreateBook(f NewBook) (Book, error) {
	f.ISBN = strings.TrimSpace(f.ISBN)
	switch {
	case f.ISBN == "":
		return Book{}, fmt.Errorf("%w: isbn is required", ErrInvalidValue)
	case strings.TrimSpace(f.Title) == "":
		return Book{}, fmt.Errorf("%w: title is required", ErrInvalidValue)
	case f.Copies < 0:
		return Book{}, fmt.Errorf("%w: copy count cannot be negative", ErrInvalidValue)
	case c.indexByISBN(f.ISBN) >= 0:
		return Book{}, fmt.Errorf("%w: isbn %q already catalogued", ErrInvalidValue, f.ISBN)
	}

	b := Book{
		ID:        c.nextID(),
		Title:     f.Title,
		Author:    f.Author,
		Publisher: f.Publisher,
		ISBN:      f.ISBN,
		Copies:    f.Copies,
		Year:      f.Year,
		History:   []BorrowRecord{},
	}
	c.list = append(c.list, b)
	if err := c.books.SaveAll(c.list); err != nil {
		c.list = c.list[:len(c.list)-1]
		return Book{}, err
	}
	c.log.Info().Int("id", b.ID).Str("isbn", b.ISBN).Str("title", b.Title).Msg("book created")
	return b, nil
}

func (c *Catalog) nextID() int {
	highest := 0
	for _, b := range c.list {
		if b.ID > highest {
			highest = b.ID
		}
	}
	return highest + 1
}

// RemoveBook deletes the book with the given ISBN.
func (c *Catalog) RemoveBook(isbn string) (Book, error) {
	i := c.indexByISBN(isbn)
	if i < 0 {
		return Book{}, fmt.Errorf("book %q: %w", isbn, ErrNotFound)
	}
	removed := c.list[i]
	rest := slices.Delete(slices.Clone(c.list), i, i+1)
	if err := c.books.SaveAll(rest); err != nil {
		return Book{}, err
	}
	c.list = rest
	c.log.Info().Str("isbn", isbn).Str("title", removed.Title).Msg("book removed")
	return removed, nil
}

// EditField sets one field of the book with the given id. Numeric fields must parse
// as integers.
func (c *Catalog) EditField(id int, field, value string) (Book, error) {
	i := c.indexByID(id)
	if i < 0 {
		return Book{}, fmt.Errorf("book id %d: %w", id, ErrNotFound)
	}
	b := c.list[i]

	field = strings.ToLower(strings.TrimSpace(field))
	switch field {
	case "id":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 1 {
			return Book{}, fmt.Errorf("%w: id must be a positive integer, got %q", ErrInvalidValue, value)
		}
		if j := c.indexByID(n); j >= 0 && j != i {
			return Book{}, fmt.Errorf("%w: id %d already used", ErrInvalidValue, n)
		}
		b.ID = n
	case "copies":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return Book{}, fmt.Errorf("%w: copies must be an integer, got %q", ErrInvalidValue, value)
		}
		if n < 0 {
			return Book{}, fmt.Errorf("%w: copy count cannot be negative", ErrInvalidValue)
		}
		b.Copies = n
	case "isbn":
		isbn := strings.TrimSpace(value)
		if isbn == "" {
			return Book{}, fmt.Errorf("%w: isbn is required", ErrInvalidValue)
		}
		if j := c.indexByISBN(isbn); j >= 0 && j != i {
			return Book{}, fmt.Errorf("%w: isbn %q already catalogued", ErrInvalidValue, isbn)
		}
		b.ISBN = isbn
	case "title":
		b.Title = value
	case "author":
		b.Author = value
	case "publisher":
		b.Publisher = value
	case "year":
		b.Year = value
	default:
		return Book{}, fmt.Errorf("%w: unknown field %q", ErrInvalidValue, field)
	}

	prev := c.list[i]
	c.list[i] = b
	// The key itself may have changed, so rewrite the collection instead of upserting.
	if err := c.books.SaveAll(c.list); err != nil {
		c.list[i] = prev
		return Book{}, err
	}
	c.log.Info().Int("id", id).Str("field", field).Msg("book edited")
	return b, nil
}

// AdjustCopies applies delta to the copy count of the book with the given ISBN.
func (c *Catalog) AdjustCopies(isbn string, delta int) (Book, error) {
	i := c.indexByISBN(isbn)
	if i < 0 {
		return Book{}, fmt.Errorf("book %q: %w", isbn, ErrNotFound)
	}
	if c.list[i].Copies+delta < 0 {
		return Book{}, fmt.Errorf("book %q: %w", isbn, ErrNoCopies)
	}
	c.list[i].Copies += delta
	if err := c.books.Upsert(c.list[i]); err != nil {
		c.list[i].Copies -= delta
		return Book{}, err
	}
	return c.list[i], nil
}

// RecordReturn puts a copy back on the shelf and appends rec, stamped with today's
// date, to the book's history.
func (c *Catalog) RecordReturn(isbn string, rec BorrowRecord) (Book, error) {
	i := c.indexByISBN(isbn)
	if i < 0 {
		return Book{}, fmt.Errorf("book %q: %w", isbn, ErrNotFound)
	}
	prev := c.list[i]
	rec.ReturnDate = today(c.clock)
	c.list[i].Copies++
	c.list[i].History = append(slices.Clone(prev.History), rec)
	if err := c.books.Upsert(c.list[i]); err != nil {
		c.list[i] = prev
		return Book{}, err
	}
	return c.list[i], nil
}

// SevenDayViolations scans every active loan of students, in order, and reports those
// held longer than the overdue limit. It does not modify anything.
func (c *Catalog) SevenDayViolations(students []Student) []Violation {
	var out []Violation
	for _, s := range students {
		for _, loan := range s.Loans {
			days, err := daysSince(c.clock, loan.Date)
			if err != nil {
				c.log.Warn().Err(err).Int("student", s.ID).Str("isbn", loan.ISBN).Msg("unreadable loan date")
				continue
			}
			if days <= c.rules.OverdueDays {
				continue
			}
			title := loan.Title
			if b, err := c.Book(loan.ISBN); err == nil {
				title = b.Title
			}
			out = append(out, Violation{
				StudentID: s.ID,
				Name:      s.Name,
				Surname:   s.Surname,
				Title:     title,
				LoanDate:  loan.Date,
				DaysOut:   days,
			})
		}
	}
	return out
}
