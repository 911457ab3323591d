package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"library-lending/console"
	"library-lending/library"

	"github.com/rs/zerolog"
)

// app is the interactive menu tree. Handlers return an error only when input ends or
// fails; library errors are shown to the user and the menu carries on.
type app struct {
	con *console.Console
	mgr *library.LibraryManager
	log zerolog.Logger
}

func newApp(con *console.Console, mgr *library.LibraryManager, log zerolog.Logger) *app {
	return &app{con: con, mgr: mgr, log: log.With().Str("component", "menu").Logger()}
}

// run shows the top-level menu until the user quits or input ends.
func (a *app) run() error {
	a.con.Clear()
	a.con.Message(console.Emphasis("Welcome to the university library!"))

	for {
		choice, err := a.con.Menu("Please choose:", "Log in.", "Register.", "Quit.")
		if err != nil {
			return endOfInput(err)
		}
		a.con.Clear()

		var sess library.Session
		var ok bool
		switch choice {
		case 1:
			sess, ok, err = a.handleLogin()
		case 2:
			sess, ok, err = a.handleRegister()
		default:
			a.con.Message(console.Plain("Goodbye!"))
			return nil
		}
		if err != nil {
			return endOfInput(err)
		}
		if !ok {
			continue
		}

		s := a.forSession(sess)
		switch sess.Role {
		case library.RoleAdmin:
			err = s.adminMenu()
		case library.RoleStudent:
			err = s.studentMenu(sess.Student.ID)
		}
		if err != nil {
			return endOfInput(err)
		}
	}
}

// forSession returns a copy of a whose log lines carry the session id.
func (a *app) forSession(sess library.Session) *app {
	s := *a
	s.log = a.log.With().Str("session", sess.ID.String()).Str("login", sess.Login()).Logger()
	s.log.Info().Stringer("role", sess.Role).Msg("session started")
	return &s
}

func endOfInput(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// report shows err in an error panel.
func (a *app) report(err error) {
	a.log.Debug().Err(err).Msg("operation refused")
	a.con.Message(console.Error(a.describe(err)))
}

func (a *app) describe(err error) string {
	rules := a.mgr.Lending().Rules()
	switch {
	case errors.Is(err, library.ErrInvalidCredentials):
		return "Wrong login or password."
	case errors.Is(err, library.ErrAccountSuspended):
		return "This account is suspended."
	case errors.Is(err, library.ErrDuplicateEmail):
		return "This email address is already used by another student."
	case errors.Is(err, library.ErrCapacityExceeded):
		return fmt.Sprintf("The limit of %d books on loan is reached.", rules.MaxActiveLoans)
	case errors.Is(err, library.ErrOverdueBlock):
		return fmt.Sprintf("A book has been on loan for more than %d days.\nReturn it before borrowing again.", rules.OverdueDays)
	case errors.Is(err, library.ErrEmptyCatalog):
		return "No book is available at the moment."
	case errors.Is(err, library.ErrEmptyCollection):
		return "Nothing to display."
	case errors.Is(err, library.ErrNoCopies):
		return "No copy of this book is left on the shelf."
	case errors.Is(err, library.ErrAlreadyRequested):
		return "This book is already requested or on loan."
	}
	return "Error: " + err.Error()
}

// ---- Authentication ----

func (a *app) handleLogin() (library.Session, bool, error) {
	answers, err := a.con.Form("Log in", []console.Field{
		{Label: "Login"},
		{Label: "Password", Masked: true},
	})
	if err != nil {
		return library.Session{}, false, err
	}
	a.con.Clear()

	sess, err := a.mgr.Accounts().Authenticate(answers["Login"], answers["Password"])
	if err != nil {
		a.report(err)
		return library.Session{}, false, nil
	}
	a.con.Message(console.Success(fmt.Sprintf("Welcome, %s!", sess.Login())))
	return sess, true, nil
}

// handleRegister creates a student account and logs it in.
func (a *app) handleRegister() (library.Session, bool, error) {
	s, ok, err := a.registerStudent("Register")
	if err != nil || !ok {
		return library.Session{}, false, err
	}
	sess, err := a.mgr.Accounts().Authenticate(s.Login, s.Password)
	if err != nil {
		a.report(err)
		return library.Session{}, false, nil
	}
	return sess, true, nil
}

func (a *app) registerStudent(title string) (library.Student, bool, error) {
	answers, err := a.con.Form(title, []console.Field{
		{Label: "Name"},
		{Label: "Surname"},
		{Label: "Password", Masked: true},
		{Label: "Email"},
	})
	if err != nil {
		return library.Student{}, false, err
	}
	a.con.Clear()

	s, err := a.mgr.Accounts().Register(library.Registration{
		Name:     answers["Name"],
		Surname:  answers["Surname"],
		Password: answers["Password"],
		Email:    answers["Email"],
	})
	if err != nil {
		a.report(err)
		return library.Student{}, false, nil
	}
	a.con.Message(
		console.Success("Account created."),
		console.Plain("Login: "),
		console.Emphasis(s.Login),
	)
	return s, true, nil
}

// ---- Admin ----

func (a *app) adminMenu() error {
	for {
		choice, err := a.con.Menu("What would you like to do?",
			"Manage accounts.",
			"Manage books.",
			"Process loan requests.",
			"Check the 7-day rule.",
			"Leave the admin interface.",
		)
		if err != nil {
			return err
		}
		a.con.Clear()

		switch choice {
		case 1:
			err = a.handleAccounts()
		case 2:
			err = a.handleBooks()
		case 3:
			err = a.handleRequests()
		case 4:
			a.handleSevenDayRule()
		default:
			a.log.Info().Msg("session ended")
			a.con.Message(console.Plain("You left the admin interface."))
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (a *app) handleAccounts() error {
	for {
		choice, err := a.con.Menu("Accounts:",
			"List student accounts.",
			"Create a student account.",
			"Suspend a student account.",
			"Back.",
		)
		if err != nil {
			return err
		}
		a.con.Clear()

		switch choice {
		case 1:
			err = a.handleListStudents()
		case 2:
			_, _, err = a.registerStudent("New student account")
		case 3:
			err = a.handleSuspend()
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

var studentHeader = []string{"ID", "Name", "Surname", "Login", "Email", "Suspended", "Requests", "Loans"}

func (a *app) showStudents(f library.StudentFilter) bool {
	students, err := a.mgr.Accounts().ListStudents(f)
	if err != nil {
		a.report(err)
		return false
	}
	rows := make([][]string, 0, len(students))
	for _, s := range students {
		rows = append(rows, []string{
			strconv.Itoa(s.ID),
			s.Name,
			s.Surname,
			s.Login,
			s.Email,
			strconv.FormatBool(s.Suspended),
			strconv.Itoa(len(s.Requests)),
			strconv.Itoa(len(s.Loans)),
		})
	}
	return a.con.Table(studentHeader, rows)
}

func (a *app) handleListStudents() error {
	choice, err := a.con.Menu("Which accounts?", "All.", "Suspended only.", "Active only.")
	if err != nil {
		return err
	}
	a.con.Clear()

	status := map[int]library.StatusFilter{
		1: library.AnyStatus,
		2: library.SuspendedOnly,
		3: library.ActiveOnly,
	}[choice]
	if a.showStudents(library.StudentFilter{Status: status}) {
		a.con.Pause()
	}
	return nil
}

func (a *app) handleSuspend() error {
	if !a.showStudents(library.StudentFilter{Status: library.ActiveOnly}) {
		return nil
	}
	id, err := a.con.Int("\nID of the student to suspend: ")
	if err != nil {
		return err
	}
	a.con.Clear()

	s, err := a.mgr.Accounts().Suspend(id)
	if err != nil {
		a.report(err)
		return nil
	}
	a.con.Message(console.Success(fmt.Sprintf("%s %s is suspended.", s.Name, s.Surname)))
	return nil
}

func (a *app) handleBooks() error {
	for {
		choice, err := a.con.Menu("Books:",
			"Add a book.",
			"Remove a book.",
			"Edit a book.",
			"List all books.",
			"Show borrow history.",
			"Back.",
		)
		if err != nil {
			return err
		}
		a.con.Clear()

		switch choice {
		case 1:
			err = a.handleAddBook()
		case 2:
			err = a.handleRemoveBook()
		case 3:
			err = a.handleEditBook()
		case 4:
			if a.showBooks() {
				a.con.Pause()
			}
		case 5:
			a.handleBorrowHistory()
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

var bookHeader = []string{"ID", "Title", "Author", "Publisher", "ISBN", "Copies", "Year"}

func (a *app) showBooks() bool {
	books := a.mgr.Catalog().ListAll()
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		rows = append(rows, []string{
			strconv.Itoa(b.ID),
			b.Title,
			b.Author,
			b.Publisher,
			b.ISBN,
			strconv.Itoa(b.Copies),
			b.Year,
		})
	}
	return a.con.Table(bookHeader, rows)
}

// handleAddBook adds copies to a known ISBN, or catalogues a new title.
func (a *app) handleAddBook() error {
	isbn, err := a.con.Input("ISBN: ")
	if err != nil {
		return err
	}
	count, err := a.positiveInt("Number of copies: ")
	if err != nil {
		return err
	}

	added, err := a.mgr.Catalog().AddCopies(isbn, count)
	switch {
	case err == nil:
		a.con.Clear()
		a.con.Message(console.Success(fmt.Sprintf("%d copies added to %s.", added, isbn)))
		return nil
	case !errors.Is(err, library.ErrNotFound):
		a.con.Clear()
		a.report(err)
		return nil
	}

	answers, err := a.con.Form("New title", []console.Field{
		{Label: "Title"},
		{Label: "Author"},
		{Label: "Publisher"},
		{Label: "Year"},
	})
	if err != nil {
		return err
	}
	a.con.Clear()

	b, err := a.mgr.Catalog().CreateBook(library.NewBook{
		Title:     answers["Title"],
		Author:    answers["Author"],
		Publisher: answers["Publisher"],
		ISBN:      isbn,
		Copies:    count,
		Year:      answers["Year"],
	})
	if err != nil {
		a.report(err)
		return nil
	}
	a.con.Message(console.Success(fmt.Sprintf("%q added with id %d.", b.Title, b.ID)))
	return nil
}

func (a *app) positiveInt(prompt string) (int, error) {
	for {
		n, err := a.con.Int(prompt)
		if err != nil {
			return 0, err
		}
		if n >= 1 {
			return n, nil
		}
		a.con.Message(console.Error("Please enter a number of at least 1."))
	}
}

func (a *app) handleRemoveBook() error {
	if !a.showBooks() {
		return nil
	}
	isbn, err := a.con.Input("\nISBN of the book to remove: ")
	if err != nil {
		return err
	}
	a.con.Clear()

	b, err := a.mgr.Catalog().RemoveBook(isbn)
	if err != nil {
		a.report(err)
		return nil
	}
	a.con.Message(console.Success(fmt.Sprintf("%q removed from the catalog.", b.Title)))
	return nil
}

func (a *app) handleEditBook() error {
	if !a.showBooks() {
		return nil
	}
	id, err := a.con.Int("\nID of the book to edit: ")
	if err != nil {
		return err
	}
	if _, err := a.mgr.Catalog().BookByID(id); err != nil {
		a.con.Clear()
		a.report(err)
		return nil
	}

	field, err := a.con.Menu("Field to change:", library.EditableFields...)
	if err != nil {
		return err
	}
	name := library.EditableFields[field-1]
	value, err := a.con.Input(fmt.Sprintf("New %s: ", name))
	if err != nil {
		return err
	}
	a.con.Clear()

	b, err := a.mgr.Catalog().EditField(id, name, value)
	if err != nil {
		a.report(err)
		return nil
	}
	a.con.Message(console.Success(fmt.Sprintf("%q updated.", b.Title)))
	return nil
}

var historyHeader = []string{"Login", "Name", "Surname", "Loan date", "Return date"}

func (a *app) handleBorrowHistory() {
	books, err := a.mgr.Catalog().BorrowHistory()
	if err != nil {
		a.report(err)
		return
	}
	for _, b := range books {
		a.con.Message(console.Emphasis(fmt.Sprintf("%s (%s)", b.Title, b.ISBN)))
		rows := make([][]string, 0, len(b.History))
		for _, h := range b.History {
			rows = append(rows, []string{h.Login, h.Name, h.Surname, h.LoanDate, h.ReturnDate})
		}
		a.con.Table(historyHeader, rows)
		a.con.Println()
	}
	if len(books) > 0 {
		a.con.Pause()
	}
}

// handleRequests lets the admin pick a student with pending requests, then accept or
// reject those requests one at a time.
func (a *app) handleRequests() error {
	if !a.showStudents(library.StudentFilter{Status: library.ActiveOnly, Where: library.HasPendingRequests}) {
		return nil
	}
	id, err := a.con.Int("\nID of the student: ")
	if err != nil {
		return err
	}
	a.con.Clear()

	s, err := a.mgr.Accounts().Student(id)
	switch {
	case err != nil:
		a.report(err)
		return nil
	case s.Suspended || !library.HasPendingRequests(s):
		a.report(fmt.Errorf("student %d has no pending request: %w", id, library.ErrNotFound))
		return nil
	}

	for len(s.Requests) > 0 {
		a.con.Message(console.Emphasis(fmt.Sprintf("Requests of %s %s", s.Name, s.Surname)))
		a.con.Table(numberedHeader, requestRows(s.Requests))
		index, err := a.con.Choice(len(s.Requests))
		if err != nil {
			return err
		}

		action, err := a.con.Menu("Decision:", "Accept.", "Reject.", "Back.")
		if err != nil {
			return err
		}
		a.con.Clear()

		switch action {
		case 1:
			loan, err := a.mgr.Lending().AcceptRequest(&s, index)
			if err != nil {
				a.report(err)
				continue
			}
			a.con.Message(console.Success(fmt.Sprintf("Loan of %q granted.", loan.Title)))
		case 2:
			req, err := a.mgr.Lending().RejectRequest(&s, index)
			if err != nil {
				a.report(err)
				continue
			}
			a.con.Message(console.Success(fmt.Sprintf("Request for %q rejected.", req.Title)))
		default:
			return nil
		}
	}
	return nil
}

var numberedHeader = []string{"No.", "Title", "ISBN"}

func requestRows(requests []library.LoanRequest) [][]string {
	rows := make([][]string, 0, len(requests))
	for i, r := range requests {
		rows = append(rows, []string{strconv.Itoa(i + 1), r.Title, r.ISBN})
	}
	return rows
}

func (a *app) handleSevenDayRule() {
	violations := a.mgr.Lending().Violations()
	if len(violations) == 0 {
		a.con.Message(console.Success("No loan is past the limit."))
		return
	}
	a.con.Message(console.Error(fmt.Sprintf("%d loans are past the limit.", len(violations))))
	a.con.Table(violationHeader, violationRows(violations))
	a.con.Pause()
}

// ---- Student ----

func (a *app) studentMenu(id int) error {
	for {
		choice, err := a.con.Menu("What would you like to do?",
			"Borrow a book.",
			"Return a book.",
			"Leave the student interface.",
		)
		if err != nil {
			return err
		}
		a.con.Clear()

		// Re-read the account: an admin may have processed requests since login.
		s, err := a.mgr.Accounts().Student(id)
		if err != nil {
			a.report(err)
			return nil
		}

		switch choice {
		case 1:
			err = a.handleBorrow(&s)
		case 2:
			err = a.handleReturn(&s)
		default:
			a.log.Info().Msg("session ended")
			a.con.Message(console.Plain("You left the student interface."))
			return nil
		}
		if err != nil {
			return err
		}
	}
}

var availableHeader = []string{"ID", "Title", "Author", "ISBN", "Times borrowed"}

func (a *app) handleBorrow(s *library.Student) error {
	if err := a.mgr.Lending().CheckEligibility(*s); err != nil {
		a.report(err)
		return nil
	}
	books, err := a.mgr.Catalog().ListAvailable()
	if err != nil {
		a.report(err)
		return nil
	}
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		rows = append(rows, []string{strconv.Itoa(b.ID), b.Title, b.Author, b.ISBN, strconv.Itoa(len(b.History))})
	}
	a.con.Table(availableHeader, rows)

	id, err := a.con.Int("\nID of the book to borrow: ")
	if err != nil {
		return err
	}
	a.con.Clear()

	b, err := a.mgr.Catalog().BookByID(id)
	if err != nil {
		a.report(err)
		return nil
	}
	req, err := a.mgr.Lending().SubmitRequest(s, b.ISBN)
	if err != nil {
		a.report(err)
		return nil
	}
	a.con.Message(
		console.Success(fmt.Sprintf("Your request for %q has been sent.", req.Title)),
		console.Plain("An administrator will review it."),
	)
	return nil
}

var loanHeader = []string{"No.", "Title", "ISBN", "Loan date"}

func (a *app) handleReturn(s *library.Student) error {
	rows := make([][]string, 0, len(s.Loans))
	for i, l := range s.Loans {
		rows = append(rows, []string{strconv.Itoa(i + 1), l.Title, l.ISBN, l.Date})
	}
	if !a.con.Table(loanHeader, rows) {
		return nil
	}

	index, err := a.con.Choice(len(s.Loans))
	if err != nil {
		return err
	}
	a.con.Clear()

	rec, err := a.mgr.Lending().ReturnLoan(s, index)
	if err != nil {
		a.report(err)
		return nil
	}
	a.con.Message(console.Success(fmt.Sprintf("Book returned on %s. Thank you!", rec.ReturnDate)))
	return nil
}
