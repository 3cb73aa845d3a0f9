package main

import (
	"github.com/spf13/cobra"

	"github.com/tobias-barakaa/newschool-sub008/apps"
)

func newMigrateCommand(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run the postgres cache migrations",
		Long: `Run a goose command against the postgres cache database.

Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version, fix`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return apps.NewArgumentError("migrate needs a command, see admin migrate --help")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openDBFunc(ctx, cli.conf)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					cli.logger.Error("closing database", err)
				}
			}()
			return gooseRunFunc(ctx, db, args[0], args[1:]...)
		},
	}
}
