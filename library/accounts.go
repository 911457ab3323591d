package library

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// EmailPattern is the address shape accepted at registration.
var EmailPattern = regexp.MustCompile(`(?i)^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// Role tags the kind of account a Session belongs to.
type Role int

const (
	RoleStudent Role = iota + 1
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Session is the logged-in account. Exactly one of Admin and Student is set, matching Role.
type Session struct {
	ID      uuid.UUID
	Role    Role
	Admin   *Admin
	Student *Student
}

// Login returns the login of whichever account the session holds.
func (s Session) Login() string {
	switch {
	case s.Admin != nil:
		return s.Admin.Login
	case s.Student != nil:
		return s.Student.Login
	}
	return ""
}

// StatusFilter selects students by suspension state.
type StatusFilter int

const (
	AnyStatus StatusFilter = iota
	SuspendedOnly
	ActiveOnly
)

// StudentFilter narrows ListStudents. A nil Where matches every student.
type StudentFilter struct {
	Status StatusFilter
	Where  func(Student) bool
}

// FieldEquals matches students whose named field equals value.
// Known fields: id, name, surname, login, email, suspended.
func FieldEquals(field, value string) func(Student) bool {
	return func(s Student) bool {
		switch strings.ToLower(field) {
		case "id":
			return strconv.Itoa(s.ID) == value
		case "name":
			return s.Name == value
		case "surname":
			return s.Surname == value
		case "login":
			return s.Login == value
		case "email":
			return s.Email == value
		case "suspended":
			return strconv.FormatBool(s.Suspended) == value
		}
		return false
	}
}

// HasPendingRequests matches students with at least one request awaiting a decision.
func HasPendingRequests(s Student) bool { return len(s.Requests) > 0 }

// Directory owns student and administrator records.
type Directory struct {
	students *Collection[Student]
	admins   *Collection[Student]
	list     []Student
	log      zerolog.Logger
}

// NewDirectory loads the student collection into memory. Admins are read on each login;
// their records have the student layout and only the account fields are used.
func NewDirectory(students *Collection[Student], admins *Collection[Student], log zerolog.Logger) (*Directory, error) {
	list, err := students.LoadAll()
	if err != nil {
		return nil, err
	}
	return &Directory{
		students: students,
		admins:   admins,
		list:     list,
		log:      log.With().Str("component", "accounts").Logger(),
	}, nil
}

func cloneStudent(s Student) Student {
	s.Requests = slices.Clone(s.Requests)
	s.Loans = slices.Clone(s.Loans)
	return s
}

func (d *Directory) indexByID(id int) int {
	for i := range d.list {
		if d.list[i].ID == id {
			return i
		}
	}
	return -1
}

// DeriveLogin builds lowercase(name) + Capitalized(surname) + id with whitespace removed.
func DeriveLogin(name, surname string, id int) string {
	login := cases.Lower(language.Und).String(name) + capitalize(surname) + strconv.Itoa(id)
	return strings.Join(strings.Fields(login), "")
}

func capitalize(s string) string {
	s = cases.Lower(language.Und).String(strings.TrimSpace(s))
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToTitle(r)) + s[size:]
}

// Register creates a student account. The email must not already belong to a student.
func (d *Directory) Register(r Registration) (Student, error) {
	name := cases.Lower(language.Und).String(strings.TrimSpace(r.Name))
	surname := cases.Lower(language.Und).String(strings.TrimSpace(r.Surname))
	email := strings.TrimSpace(r.Email)

	switch {
	case name == "" || surname == "":
		return Student{}, fmt.Errorf("%w: name and surname are required", ErrInvalidValue)
	case r.Password == "":
		return Student{}, fmt.Errorf("%w: password is required", ErrInvalidValue)
	case !EmailPattern.MatchString(email):
		return Student{}, fmt.Errorf("%w: malformed email %q", ErrInvalidValue, email)
	}
	for _, s := range d.list {
		if strings.EqualFold(s.Email, email) {
			return Student{}, fmt.Errorf("%s: %w", email, ErrDuplicateEmail)
		}
	}

	id := len(d.list) + 1
	s := Student{
		Account: Account{
			ID:       id,
			Name:     name,
			Surname:  surname,
			Login:    DeriveLogin(name, surname, id),
			Password: r.Password,
			Email:    email,
		},
		Requests: []LoanRequest{},
		Loans:    []Loan{},
	}
	if err := d.students.Upsert(s); err != nil {
		return Student{}, err
	}
	d.list = append(d.list, s)
	d.log.Info().Int("id", id).Str("login", s.Login).Msg("student registered")
	return cloneStudent(s), nil
}

// HashPassword returns a bcrypt hash suitable for the admin credential store.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// passwordMatches accepts stored bcrypt hashes as well as plaintext values.
func passwordMatches(stored, supplied string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}
	return stored == supplied
}

// Authenticate checks the admin store first, then the students.
func (d *Directory) Authenticate(login, password string) (Session, error) {
	admins, err := d.admins.LoadAll()
	if err != nil {
		return Session{}, err
	}
	for _, a := range admins {
		if a.Login == login && passwordMatches(a.Password, password) {
			d.log.Info().Str("login", login).Msg("admin logged in")
			return Session{ID: uuid.New(), Role: RoleAdmin, Admin: adminSession(a)}, nil
		}
	}

	for _, s := range d.list {
		if s.Login != login || !passwordMatches(s.Password, password) {
			continue
		}
		if s.Suspended {
			d.log.Info().Str("login", login).Msg("suspended student refused")
			return Session{}, ErrAccountSuspended
		}
		d.log.Info().Str("login", login).Msg("student logged in")
		return Session{ID: uuid.New(), Role: RoleStudent, Student: studentSession(s)}, nil
	}

	d.log.Info().Str("login", login).Msg("login failed")
	return Session{}, ErrInvalidCredentials
}

func adminSession(a Student) *Admin {
	return &Admin{Account: Account{
		ID:      a.ID,
		Name:    a.Name,
		Surname: a.Surname,
		Login:   a.Login,
		Email:   a.Email,
	}}
}

func studentSession(s Student) *Student {
	return &Student{
		Account: Account{
			ID:       s.ID,
			Name:     s.Name,
			Surname:  s.Surname,
			Login:    s.Login,
			Password: s.Password,
			Email:    s.Email,
		},
		Suspended: s.Suspended,
		Requests:  slices.Clone(s.Requests),
		Loans:     slices.Clone(s.Loans),
	}
}

// Suspend marks the active student with the given id as suspended.
func (d *Directory) Suspend(id int) (Student, error) {
	i := d.indexByID(id)
	if i < 0 || d.list[i].Suspended {
		return Student{}, fmt.Errorf("active student %d: %w", id, ErrNotFound)
	}
	s := cloneStudent(d.list[i])
	s.Suspended = true
	if err := d.Update(s); err != nil {
		return Student{}, err
	}
	d.log.Info().Int("id", id).Msg("student suspended")
	return s, nil
}

// Student returns the student with the given id.
func (d *Directory) Student(id int) (Student, error) {
	i := d.indexByID(id)
	if i < 0 {
		return Student{}, fmt.Errorf("student %d: %w", id, ErrNotFound)
	}
	return cloneStudent(d.list[i]), nil
}

// ListStudents returns the students matching f in registration order.
func (d *Directory) ListStudents(f StudentFilter) ([]Student, error) {
	var out []Student
	for _, s := range d.list {
		switch {
		case f.Status == SuspendedOnly && !s.Suspended:
			continue
		case f.Status == ActiveOnly && s.Suspended:
			continue
		case f.Where != nil && !f.Where(s):
			continue
		}
		out = append(out, cloneStudent(s))
	}
	if len(out) == 0 {
		return nil, ErrEmptyCollection
	}
	return out, nil
}

// Update stores s over the record with the same id.
func (d *Directory) Update(s Student) error {
	i := d.indexByID(s.ID)
	if i < 0 {
		return fmt.Errorf("student %d: %w", s.ID, ErrNotFound)
	}
	s = cloneStudent(s)
	if err := d.students.Upsert(s); err != nil {
		return err
	}
	d.list[i] = s
	return nil
}
