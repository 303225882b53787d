package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/dockyard/core/allocator"
	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/infra/store"
)

var outputFormat string

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Top up the dock pool to the configured counts and exit",
	RunE:  provision,
}

var docksCmd = &cobra.Command{
	Use:   "docks",
	Short: "Print the current dock status",
	RunE:  listDocks,
}

func init() {
	docksCmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
	rootCmd.AddCommand(provisionCmd, docksCmd)
}

func provision(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	created, err := allocator.New(st).Provision(ctx, cfg.Docks.Counts())
	if err != nil {
		return err
	}
	for _, d := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", d.ID, d.Type)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d docks created\n", len(created))
	return nil
}

func listDocks(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	docks, err := allocator.New(st).List(ctx)
	if err != nil {
		return err
	}
	return writeDocks(cmd, docks)
}

func writeDocks(cmd *cobra.Command, docks []model.Dock) error {
	out := cmd.OutOrStdout()
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(docks)
	case "yaml":
		rows := make([]map[string]any, 0, len(docks))
		for _, d := range docks {
			row := map[string]any{"id": d.ID, "type": string(d.Type), "status": string(d.Status)}
			if d.Occupied() {
				row["currentTruckId"] = d.CurrentTruckID
				row["assignedAt"] = d.AssignedAt.UTC().Format("2006-01-02T15:04:05Z")
			}
			rows = append(rows, row)
		}
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(rows)
	}
	return fmt.Errorf("unknown output format %q", outputFormat)
}
