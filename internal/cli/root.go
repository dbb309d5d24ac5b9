package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"crnumbers/internal/config"
	applog "crnumbers/internal/log"
	"crnumbers/internal/services"
	"crnumbers/internal/storage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DatabasePath string
	Format       string // "json" | "text"
	Verbose      bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the crctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "crctl",
		Short: "Maintenance tasks for the Friday night numbers database",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.DatabasePath == "" {
				return fmt.Errorf("database path is required")
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DatabasePath, "db", config.Load().DatabasePath, "SQLite database path")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewBackfillCommand(opts))
	cmd.AddCommand(NewCleanPendingCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// session is an opened database plus the services the commands use.
type session struct {
	repo        *storage.SQLiteRepository
	logger      *applog.Logger
	maintenance *services.MaintenanceService
	reports     *services.ReportService
}

func (o *RootOptions) open(cmd *cobra.Command) (*session, error) {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	logger := applog.New(applog.Config{
		Level:     level,
		Component: applog.ComponentCLI,
		Output:    cmd.ErrOrStderr(),
	})

	repo, err := storage.NewSQLiteRepository(o.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &session{
		repo:        repo,
		logger:      logger,
		maintenance: services.NewMaintenanceService(repo, repo, nil, logger),
		reports:     services.NewReportService(repo, nil, logger),
	}, nil
}

func (s *session) Close() error {
	return s.repo.Close()
}
