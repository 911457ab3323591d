package library

// Book is a catalog entry. Copies counts the lendable instances currently on the shelf.
type Book struct {
	ID        int            `json:"id"`
	Title     string         `json:"title"`
	Author    string         `json:"author"`
	Publisher string         `json:"publisher"`
	ISBN      string         `json:"isbn"`
	Copies    int            `json:"copies"`
	Year      string         `json:"year"`
	History   []BorrowRecord `json:"history"`
}

// BookSummary is the student-facing projection of an available book.
type BookSummary struct {
	ID      int            `json:"id"`
	Title   string         `json:"title"`
	Author  string         `json:"author"`
	ISBN    string         `json:"isbn"`
	History []BorrowRecord `json:"history"`
}

// NewBook holds the fields an administrator supplies for a title not yet in the catalog.
type NewBook struct {
	Title     string
	Author    string
	Publisher string
	ISBN      string
	Copies    int
	Year      string
}

// BorrowRecord is appended to a book's history when a loan is returned.
type BorrowRecord struct {
	Ref        string `json:"ref,omitempty"`
	Login      string `json:"login"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	LoanDate   string `json:"loan_date"`
	ReturnDate string `json:"return_date"`
}

// LoanRequest is a student's intent to borrow. It does not hold a copy.
type LoanRequest struct {
	Title string `json:"title"`
	ISBN  string `json:"isbn"`
}

// Loan is an approved, outstanding borrow. Date is the ISO calendar date of approval.
type Loan struct {
	Ref   string `json:"ref,omitempty"`
	Title string `json:"title"`
	ISBN  string `json:"isbn"`
	Date  string `json:"date"`
}

// Account is the shape shared by students and administrators.
type Account struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Login    string `json:"login"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// Student is a registered borrower.
type Student struct {
	Account
	Suspended bool          `json:"suspended"`
	Requests  []LoanRequest `json:"requests"`
	Loans     []Loan        `json:"loans"`
}

// Admin is the account of a logged-in administrator, mapped from the read-only credential store.
type Admin struct {
	Account
}

// Registration carries the form fields of a new student account.
type Registration struct {
	Name     string
	Surname  string
	Password string
	Email    string
}

// Violation reports a loan held past the overdue limit.
type Violation struct {
	StudentID int    `json:"student_id"`
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	Title     string `json:"title"`
	LoanDate  string `json:"loan_date"`
	DaysOut   int    `json:"days_out"`
}
