package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"library-lending/config"
	"library-lending/console"
	"library-lending/library"
	"library-lending/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The bare command runs the interactive menu.
func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "library",
		Short:        "Terminal library: catalog, loan requests and the 7-day rule",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, log, closeAll, err := openLibrary(configPath)
			if err != nil {
				return err
			}
			defer closeAll()

			a := newApp(console.New(in, out), mgr, log)
			return a.run()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "library.yaml", "path to the YAML configuration file")
	root.SetIn(in)
	root.SetOut(out)

	root.AddCommand(&cobra.Command{
		Use:   "overdue",
		Short: "Print the loans held past the overdue limit and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, closeAll, err := openLibrary(configPath)
			if err != nil {
				return err
			}
			defer closeAll()

			con := console.New(in, out)
			violations := mgr.Lending().Violations()
			if len(violations) == 0 {
				con.Message(console.Success("No loan is past the limit."))
				return nil
			}
			con.Table(violationHeader, violationRows(violations))
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "hash-password",
		Short: "Read a password and print its bcrypt hash for the admins collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			con := console.New(in, out)
			answers, err := con.Form("Admin password", []console.Field{{Label: "Password", Masked: true}})
			if err != nil {
				return err
			}
			hash, err := library.HashPassword(answers["Password"])
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}
			con.Println(hash)
			return nil
		},
	})

	return root
}

// openLibrary loads the configuration, starts file logging and opens the storage
// backend. The returned func releases both.
func openLibrary(configPath string) (*library.LibraryManager, zerolog.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	logFile, err := logger.OpenFile(cfg.LogFile())
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
	}
	log := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Format == "pretty",
		Output: logFile,
	})

	mgr, err := library.NewLibraryManager(library.Options{
		Backend: cfg.Storage.Backend,
		DataDir: cfg.Storage.DataDir,
		Strict:  cfg.Storage.Strict,
		Rules: library.Rules{
			MaxActiveLoans: cfg.Lending.MaxActiveLoans,
			OverdueDays:    cfg.Lending.OverdueDays,
		},
		Logger: log,
	})
	if err != nil {
		log.Error().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to open library")
		logFile.Close()
		return nil, zerolog.Nop(), nil, fmt.Errorf("opening library: %w", err)
	}
	log.Info().Str("backend", cfg.Storage.Backend).Str("data_dir", cfg.Storage.DataDir).Msg("library opened")

	return mgr, log, func() {
		if err := mgr.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
		logFile.Close()
	}, nil
}

var violationHeader = []string{"Student ID", "Name", "Surname", "Title", "Loan date", "Days out"}

func violationRows(violations []library.Violation) [][]string {
	rows := make([][]string, 0, len(violations))
	for _, v := range violations {
		rows = append(rows, []string{
			strconv.Itoa(v.StudentID),
			v.Name,
			v.Surname,
			v.Title,
			v.LoanDate,
			strconv.Itoa(v.DaysOut),
		})
	}
	return rows
}
