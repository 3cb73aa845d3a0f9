package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tobias-barakaa/newschool-sub008/apps"
	"github.com/tobias-barakaa/newschool-sub008/core"
	"github.com/tobias-barakaa/newschool-sub008/core/timetable"
	"github.com/tobias-barakaa/newschool-sub008/storage/database"
)

const (
	formatText = "text"
	formatJSON = "json"
)

var (
	gooseRunFunc   = database.RunMigrations // mockable
	openDBFunc     = openDB                 // mockable
	isTerminalFunc = term.IsTerminal        // mockable
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	in     io.Reader
	inFd   int
	out    io.Writer
	format string

	// openService opens the configured cache and restores the timetable from it.
	// The returned func releases the cache.
	openService func(ctx context.Context) (timetable.ServiceInterface, func() error, error)
}

func openDB(ctx context.Context, conf *core.Config) (*sql.DB, error) {
	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	return db.DB, nil
}

func newRootCommand(cli *commandLine) *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Timetable administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cli.format {
			case formatText, formatJSON:
				return nil
			}
			return apps.NewArgumentError(fmt.Sprintf("invalid format %q (want %s or %s)", cli.format, formatText, formatJSON))
		},
	}
	root.SetIn(cli.in)
	root.SetOut(cli.out)
	root.PersistentFlags().StringVar(&cli.format, "format", formatText, "output format: text|json")

	root.AddCommand(
		newMigrateCommand(cli),
		newResetCommand(cli),
		newReloadCommand(cli),
		newStatsCommand(cli),
		newConflictsCommand(cli),
		newDiffCommand(cli),
	)
	return root
}

// withService runs fn against a freshly restored service and releases the cache afterwards.
func (cli *commandLine) withService(ctx context.Context, fn func(svc timetable.ServiceInterface) error) error {
	svc, closeFn, err := cli.openService(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			cli.logger.Error("closing cache", err)
		}
	}()
	return fn(svc)
}

// render writes v as indented JSON, or calls text in text mode.
func (cli *commandLine) render(v interface{}, text func(w io.Writer) error) error {
	if cli.format == formatJSON {
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(cli.out)
}
