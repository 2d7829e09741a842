package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Felmond13/novusgraph/api"
	"github.com/Felmond13/novusgraph/config"
	"github.com/Felmond13/novusgraph/logger"
)

type runFlags struct {
	ns, db     string
	store      string
	configPath string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "novusgraph",
		Short:         "NovusGraph CLI",
		Long:          "NovusGraph is an embedded document and graph database driven by YAML statement scripts.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "novusgraph v%s\n", version)
		},
	}
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [script.yaml|-]",
		Short: "Execute a statement script",
		Long: `Execute a YAML statement script and print the responses as JSON.

Without argument, or with "-", the script is read from standard input.

Examples:
  novusgraph run seed.yaml --ns test --db test
  novusgraph run - --store file:data.ngs < queries.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readScript(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			cfg, err := config.Load(config.EnvPrefix, f.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("store") {
				cfg.Store = f.store
			}
			logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cmd.ErrOrStderr()})

			db, err := api.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			out, err := db.Run(cmd.Context(), db.NewSession(f.ns, f.db), text)
			if out != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(out); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&f.ns, "ns", "", "namespace to use")
	cmd.Flags().StringVar(&f.db, "db", "", "database to use")
	cmd.Flags().StringVarP(&f.store, "store", "s", "memory", "datastore: memory, file:<path> or sqlite:<dsn>")
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to a YAML configuration file")
	return cmd
}

func readScript(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(b), nil
}
