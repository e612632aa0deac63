package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bdobrica/parlor/common/version"
	"github.com/bdobrica/parlor/internal/parlor/app"
	"github.com/bdobrica/parlor/internal/parlor/persona"
	"github.com/bdobrica/parlor/internal/parlor/store"
	"github.com/bdobrica/parlor/internal/parlor/training"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			slog.Info("starting", "version", version.Info(), "config", cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer a.Stop()

			return a.Run(ctx)
		},
	}
}

func trainCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "train",
		Short: "Manage learned question/answer pairs",
	}
	command.AddCommand(trainImportCmd(), trainListCmd())
	return command
}

func trainImportCmd() *cobra.Command {
	var model string

	command := &cobra.Command{
		Use:   "import <file>",
		Short: "Import question/answer pairs from a YAML or JSON file",
		Long: `Import question/answer pairs from a YAML or JSON list.

Example file:
  - model: eng_girl_1
    question: What is your name?
    answer: I'm Emma!
    priority: 5

Entries without a model use --model. Priority defaults to 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			recs, err := training.ReadRecords(f, model)
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := training.Import(cmd.Context(), training.New(db), recs)
			if err != nil {
				return fmt.Errorf("imported %d of %d: %w", n, len(recs), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d pairs\n", n)
			return nil
		},
	}
	command.Flags().StringVarP(&model, "model", "m", "", "persona for entries without a model")
	return command
}

func trainListCmd() *cobra.Command {
	var limit int

	command := &cobra.Command{
		Use:   "list <model>",
		Short: "List a persona's pairs by priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			recs, err := training.New(db).List(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PRIORITY\tAUTO\tQUESTION\tANSWER")
			for _, r := range recs {
				fmt.Fprintf(w, "%d\t%t\t%s\t%s\n", r.Priority, r.AutoTrained, r.Question, r.Answer)
			}
			return w.Flush()
		},
	}
	command.Flags().IntVarP(&limit, "limit", "n", 50, "maximum pairs to list")
	return command
}

func personasCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "personas",
		Short: "Inspect and seed persona documents",
	}
	command.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored personas",
			RunE: func(cmd *cobra.Command, args []string) error {
				src, err := openPersonas()
				if err != nil {
					return err
				}
				list, err := src.List(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "MODEL\tNAME\tLANGUAGE\tCOUNTRY")
				for _, p := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.DisplayName, p.Language, p.Country)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Write the stock personas that are missing",
			RunE: func(cmd *cobra.Command, args []string) error {
				src, err := openPersonas()
				if err != nil {
					return err
				}
				created, err := persona.SeedDefaults(cmd.Context(), src)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d personas\n", len(created))
				return nil
			},
		},
	)
	return command
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}

func openStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func openPersonas() (*persona.FileSource, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return persona.NewFileSource(cfg.Personas.Dir)
}
