package library

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
)

// Lending runs the request -> approval -> loan -> return lifecycle. It owns no records:
// books change through the Catalog and students through the Directory.
type Lending struct {
	catalog  *Catalog
	accounts *Directory
	rules    Rules
	clock    Clock
	ids      IDGen
	log      zerolog.Logger
}

// NewLending wires the engine to the two record owners.
func NewLending(catalog *Catalog, accounts *Directory, rules Rules, clock Clock, ids IDGen, log zerolog.Logger) *Lending {
	return &Lending{
		catalog:  catalog,
		accounts: accounts,
		rules:    rules,
		clock:    clock,
		ids:      ids,
		log:      log.With().Str("component", "lending").Logger(),
	}
}

// Rules returns the limits the engine enforces.
func (l *Lending) Rules() Rules { return l.rules }

// CheckEligibility reports why s may not submit a new request, or nil.
func (l *Lending) CheckEligibility(s Student) error {
	switch {
	case s.Suspended:
		return ErrAccountSuspended
	case len(s.Loans) >= l.rules.MaxActiveLoans:
		return ErrCapacityExceeded
	case l.hasOverdue(s):
		return ErrOverdueBlock
	}
	return nil
}

func (l *Lending) hasOverdue(s Student) bool {
	for _, loan := range s.Loans {
		days, err := daysSince(l.clock, loan.Date)
		if err != nil {
			l.log.Warn().Err(err).Int("student", s.ID).Str("isbn", loan.ISBN).Msg("unreadable loan date")
			continue
		}
		if days > l.rules.OverdueDays {
			return true
		}
	}
	return false
}

// SubmitRequest records s's intent to borrow the book with the given ISBN. No copy is
// reserved: availability is settled when the request is accepted.
func (l *Lending) SubmitRequest(s *Student, isbn string) (LoanRequest, error) {
	if err := l.CheckEligibility(*s); err != nil {
		return LoanRequest{}, err
	}
	book, err := l.catalog.Book(isbn)
	if err != nil {
		return LoanRequest{}, err
	}
	if book.Copies < 1 {
		return LoanRequest{}, fmt.Errorf("%q: %w", book.Title, ErrNoCopies)
	}
	for _, r := range s.Requests {
		if r.ISBN == isbn {
			return LoanRequest{}, fmt.Errorf("%q: %w", book.Title, ErrAlreadyRequested)
		}
	}
	for _, loan := range s.Loans {
		if loan.ISBN == isbn {
			return LoanRequest{}, fmt.Errorf("%q: %w", book.Title, ErrAlreadyRequested)
		}
	}

	req := LoanRequest{Title: book.Title, ISBN: book.ISBN}
	updated := cloneStudent(*s)
	updated.Requests = append(updated.Requests, req)
	if err := l.accounts.Update(updated); err != nil {
		return LoanRequest{}, err
	}
	*s = updated
	l.log.Info().Int("student", s.ID).Str("isbn", isbn).Msg("loan requested")
	return req, nil
}

func checkIndex(index, n int) error {
	if index < 1 || index > n {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrOutOfRange, index, n)
	}
	return nil
}

// AcceptRequest turns request number index (1-based) of s into an active loan dated
// today and takes one copy off the shelf. The request stays pending if the student is
// at the loan limit or no copy is left.
func (l *Lending) AcceptRequest(s *Student, index int) (Loan, error) {
	if err := checkIndex(index, len(s.Requests)); err != nil {
		return Loan{}, err
	}
	if len(s.Loans) >= l.rules.MaxActiveLoans {
		return Loan{}, ErrCapacityExceeded
	}
	req := s.Requests[index-1]

	ref, err := l.ids.New()
	if err != nil {
		return Loan{}, fmt.Errorf("loan reference: %w", err)
	}
	if _, err := l.catalog.AdjustCopies(req.ISBN, -1); err != nil {
		return Loan{}, err
	}

	loan := Loan{Ref: ref, Title: req.Title, ISBN: req.ISBN, Date: today(l.clock)}
	updated := cloneStudent(*s)
	updated.Requests = slices.Delete(updated.Requests, index-1, index)
	updated.Loans = append(updated.Loans, loan)
	if err := l.accounts.Update(updated); err != nil {
		l.log.Error().Err(err).Int("student", s.ID).Str("isbn", req.ISBN).Msg("copy taken but student not saved")
		return Loan{}, err
	}
	*s = updated
	l.log.Info().Int("student", s.ID).Str("isbn", req.ISBN).Str("ref", ref).Msg("request accepted")
	return loan, nil
}

// RejectRequest drops request number index (1-based) of s. Inventory is untouched.
func (l *Lending) RejectRequest(s *Student, index int) (LoanRequest, error) {
	if err := checkIndex(index, len(s.Requests)); err != nil {
		return LoanRequest{}, err
	}
	req := s.Requests[index-1]
	updated := cloneStudent(*s)
	updated.Requests = slices.Delete(updated.Requests, index-1, index)
	if err := l.accounts.Update(updated); err != nil {
		return LoanRequest{}, err
	}
	*s = updated
	l.log.Info().Int("student", s.ID).Str("isbn", req.ISBN).Msg("request rejected")
	return req, nil
}

// ReturnLoan ends loan number index (1-based) of s: the copy goes back on the shelf and
// the book's history gains an entry dated today.
func (l *Lending) ReturnLoan(s *Student, index int) (BorrowRecord, error) {
	if err := checkIndex(index, len(s.Loans)); err != nil {
		return BorrowRecord{}, err
	}
	loan := s.Loans[index-1]
	rec := BorrowRecord{
		Ref:      loan.Ref,
		Login:    s.Login,
		Name:     s.Name,
		Surname:  s.Surname,
		LoanDate: loan.Date,
	}

	book, err := l.catalog.RecordReturn(loan.ISBN, rec)
	switch {
	case errors.Is(err, ErrNotFound):
		// The title left the catalog while on loan; the student still gives it back.
		l.log.Warn().Int("student", s.ID).Str("isbn", loan.ISBN).Msg("returned book no longer catalogued, history dropped")
		rec.ReturnDate = today(l.clock)
	case err != nil:
		return BorrowRecord{}, err
	default:
		rec = book.History[len(book.History)-1]
	}

	updated := cloneStudent(*s)
	updated.Loans = slices.Delete(updated.Loans, index-1, index)
	if err := l.accounts.Update(updated); err != nil {
		l.log.Error().Err(err).Int("student", s.ID).Str("isbn", loan.ISBN).Msg("copy restored but student not saved")
		return BorrowRecord{}, err
	}
	*s = updated
	l.log.Info().Int("student", s.ID).Str("isbn", loan.ISBN).Msg("loan returned")
	return rec, nil
}

// PendingRequests lists the active students with requests awaiting a decision.
func (l *Lending) PendingRequests() ([]Student, error) {
	return l.accounts.ListStudents(StudentFilter{Status: ActiveOnly, Where: HasPendingRequests})
}

// Violations runs the 7-day rule over every student.
func (l *Lending) Violations() []Violation {
	students, err := l.accounts.ListStudents(StudentFilter{})
	if err != nil {
		return nil
	}
	return l.catalog.SevenDayViolations(students)
}
