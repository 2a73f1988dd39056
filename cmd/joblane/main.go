// Command joblane is the operational CLI for the job store: applying
// schema migrations and inspecting job rows and their lineage.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldmark/joblane/config"
	"github.com/fieldmark/joblane/db"
	"github.com/fieldmark/joblane/job"
	"github.com/fieldmark/joblane/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "joblane",
	Short:         "Durable recurring job lifecycle tooling",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		return logger.Initialize(cfg.JSONLogs)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(cfg.DatabasePath, logger.Logger)
		if err != nil {
			return err
		}
		defer conn.Close()
		return db.Migrate(conn, logger.Logger)
	},
}

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect job rows",
}

var jobShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Print a job row and its recurrence/retry lineage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(cfg.DatabasePath, logger.Logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx := context.Background()
		store := job.NewSQLiteStore(conn)

		row, err := store.GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		if err := printJSON(cmd, row); err != nil {
			return err
		}

		root := row.ParentJobID
		if root == "" {
			root = row.ID
		}
		lineage, err := store.ListJobsByParent(ctx, root)
		if err != nil {
			return err
		}
		if len(lineage) <= 1 {
			return nil
		}

		cmd.Println()
		cmd.Printf("Lineage (root %s):\n", root)
		for _, j := range lineage {
			marker := " "
			if j.ID == row.ID {
				marker = "*"
			}
			retries := int64(0)
			if j.CurrentRetryCount != nil {
				retries = *j.CurrentRetryCount
			}
			cmd.Printf("%s %s  %-8s  run_time=%s  retries=%d\n",
				marker, j.ID, j.Status, j.RunTime.Format("2006-01-02T15:04:05Z07:00"), retries)
		}
		return nil
	},
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}

func main() {
	rootCmd.AddCommand(migrateCmd)
	jobCmd.AddCommand(jobShowCmd)
	rootCmd.AddCommand(jobCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}
