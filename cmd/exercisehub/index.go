package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"exercisehub/internal/code"
	"exercisehub/internal/index"
)

func indexCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load and validate the static index, printing the repaired entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, err := index.LoadCatalog(cfg.Data.IndexPath, cfg.Data.CatalogPath)
			if err != nil {
				return err
			}
			return printIndex(cmd.OutOrStdout(), cat.Index(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printIndex(w io.Writer, ix *index.Index, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ix.Entries())
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tSERIES\tTITLE")
	for _, e := range ix.Entries() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Code, e.Series, e.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d entries", ix.Len())
	for n := code.MinSeries; n <= code.MaxSeries; n++ {
		fmt.Fprintf(w, ", %s: %d", code.SeriesDir(n), len(ix.BySeries(n)))
	}
	fmt.Fprintln(w)
	return nil
}
