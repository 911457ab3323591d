package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"library-lending/config"
	"library-lending/console"
	"library-lending/library"
	"library-lending/logger"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedBook is one entry of the seed file.
type seedBook struct {
	Title     string `yaml:"title"`
	Author    string `yaml:"author"`
	Publisher string `yaml:"publisher"`
	ISBN      string `yaml:"isbn"`
	Copies    int    `yaml:"copies"`
	Year      string `yaml:"year"`
}

type seedFile struct {
	Books []seedBook `yaml:"books"`
}

func main() {
	var configPath, seedPath string

	cmd := &cobra.Command{
		Use:          "import_books",
		Short:        "Add the books of a YAML seed file to the catalog",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, seedPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "library.yaml", "path to the YAML configuration file")
	cmd.Flags().StringVar(&seedPath, "file", "cmd/import_books/books.yaml", "path to the seed file")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath, seedPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}

	log := logger.Configure(logger.Config{Level: cfg.Logging.Level, Pretty: true})
	manager, err := library.NewLibraryManager(library.Options{
		Backend: cfg.Storage.Backend,
		DataDir: cfg.Storage.DataDir,
		Strict:  cfg.Storage.Strict,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("opening library: %w", err)
	}
	defer manager.Close()

	con := console.New(os.Stdin, os.Stdout)
	con.Printf("Importing %d books from %s...\n", len(seed.Books), seedPath)

	added, created, failed := 0, 0, 0
	catalog := manager.Catalog()
	for _, b := range seed.Books {
		con.Printf("Importing: %s by %s... ", b.Title, b.Author)

		isNew, detail, err := importBook(catalog, b)
		if err != nil {
			con.Printf("ERROR - %v\n", err)
			failed++
			continue
		}
		con.Printf("SUCCESS (%s)\n", detail)
		if isNew {
			created++
		} else {
			added++
		}
	}

	con.Printf("\nImport complete!\n")
	con.Printf("New titles: %d, restocked: %d, errors: %d\n\n", created, added, failed)

	books := catalog.ListAll()
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		rows = append(rows, []string{strconv.Itoa(b.ID), truncateString(b.Title, 50), truncateString(b.Author, 30), strconv.Itoa(b.Copies)})
	}
	con.Table([]string{"ID", "Title", "Author", "Copies"}, rows)
	return nil
}

// importBook catalogues b, or adds its copies when the ISBN is already known.
// It reports whether a new title was created.
func importBook(catalog *library.Catalog, b seedBook) (bool, string, error) {
	isbn := strings.TrimSpace(b.ISBN)
	_, err := catalog.Book(isbn)
	switch {
	case errors.Is(err, library.ErrNotFound):
		book, err := catalog.CreateBook(library.NewBook{
			Title:     b.Title,
			Author:    b.Author,
			Publisher: b.Publisher,
			ISBN:      isbn,
			Copies:    b.Copies,
			Year:      b.Year,
		})
		if err != nil {
			return false, "", err
		}
		return true, fmt.Sprintf("ID: %d", book.ID), nil
	case err != nil:
		return false, "", err
	case b.Copies == 0:
		return false, "already catalogued", nil
	}

	n, err := catalog.AddCopies(isbn, b.Copies)
	if err != nil {
		return false, "", err
	}
	return false, fmt.Sprintf("+%d copies", n), nil
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
