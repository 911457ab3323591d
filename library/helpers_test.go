package library

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var testNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.Local)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// daysAgo returns the ISO date n calendar days before testNow.
func daysAgo(n int) string {
	return testNow.AddDate(0, 0, -n).Format(DateLayout)
}

type seqIDs struct{ n int }

func (s *seqIDs) New() (string, error) {
	s.n++
	return fmt.Sprintf("loan-%d", s.n), nil
}

func testOptions(kind, dir string) Options {
	return Options{
		Backend: kind,
		DataDir: dir,
		Rules:   DefaultRules,
		Clock:   fixedClock{now: testNow},
		IDs:     &seqIDs{},
		Logger:  zerolog.Nop(),
	}
}

func openManager(t *testing.T, kind, dir string) *LibraryManager {
	t.Helper()
	lm, err := NewLibraryManager(testOptions(kind, dir))
	if err != nil {
		t.Fatalf("open manager: %v", err)
	}
	t.Cleanup(func() { lm.Close() })
	return lm
}

func newManager(t *testing.T) *LibraryManager {
	t.Helper()
	return openManager(t, BackendJSON, t.TempDir())
}

func seedBook(t *testing.T, lm *LibraryManager, isbn, title string, copies int) Book {
	t.Helper()
	b, err := lm.Catalog().CreateBook(NewBook{
		Title:     title,
		Author:    "Author of " + title,
		Publisher: "Gallimard",
		ISBN:      isbn,
		Copies:    copies,
		Year:      "2001",
	})
	if err != nil {
		t.Fatalf("create book %s: %v", isbn, err)
	}
	return b
}

func registerStudent(t *testing.T, lm *LibraryManager, name, surname, email string) Student {
	t.Helper()
	s, err := lm.Accounts().Register(Registration{
		Name:     name,
		Surname:  surname,
		Password: "secret",
		Email:    email,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return s
}

// giveLoans stores loans dated per dates directly on the student, bypassing approval.
func giveLoans(t *testing.T, lm *LibraryManager, s *Student, dates ...string) {
	t.Helper()
	for i, d := range dates {
		s.Loans = append(s.Loans, Loan{
			Title: fmt.Sprintf("Held %d", i+1),
			ISBN:  fmt.Sprintf("held-%d", i+1),
			Date:  d,
		})
	}
	if err := lm.Accounts().Update(*s); err != nil {
		t.Fatalf("update student: %v", err)
	}
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
