package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdewitt/citelens"
)

var (
	flagParseID        string
	flagParseName      string
	flagParseSecondary string
	flagParseForce     bool
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE...",
	Short: "Parse documents and register them as sources",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagParseID != "" && len(args) > 1 {
			return fmt.Errorf("--id only applies to a single file")
		}

		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		green := color.New(color.FgGreen)
		for _, path := range args {
			var opts []citelens.SourceOption
			if flagParseID != "" {
				opts = append(opts, citelens.WithSourceID(flagParseID))
			}
			if flagParseName != "" {
				opts = append(opts, citelens.WithSourceName(flagParseName))
			}
			if flagParseSecondary != "" {
				opts = append(opts, citelens.WithSecondaryFile(flagParseSecondary))
			}
			if flagParseForce {
				opts = append(opts, citelens.WithForceReparse())
			}

			id, err := engine.AddSource(cmd.Context(), path, opts...)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", path, err)
			}
			green.Printf("✓ %s", path)
			fmt.Printf("  (%s)\n", id)
		}
		return nil
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List registered sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		recs, err := engine.ListSources(cmd.Context())
		if err != nil {
			return err
		}
		bold := color.New(color.Bold)
		for _, rec := range recs {
			bold.Printf("%s", rec.ID)
			fmt.Printf("  %-4s  %s", rec.Kind, rec.Name)
			if rec.PageCount > 0 {
				fmt.Printf("  (%d pages)", rec.PageCount)
			}
			fmt.Println()
		}
		if len(recs) == 0 {
			fmt.Println("no sources registered")
		}
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [SOURCE_ID]",
	Short: "Re-parse sources whose files changed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		if len(args) == 1 {
			changed, err := engine.Update(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printUpdate(args[0], changed)
			return nil
		}

		results, err := engine.UpdateAll(cmd.Context())
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Error != nil {
				color.Red("✗ %s: %v", r.SourceID, r.Error)
				continue
			}
			printUpdate(r.SourceID, r.Changed)
		}
		return nil
	},
}

func printUpdate(id string, changed bool) {
	if changed {
		color.Green("✓ %s reparsed", id)
	} else {
		fmt.Printf("  %s unchanged\n", id)
	}
}

func init() {
	parseCmd.Flags().StringVar(&flagParseID, "id", "", "pin the source ID (single file only)")
	parseCmd.Flags().StringVar(&flagParseName, "name", "", "display name for the source")
	parseCmd.Flags().StringVar(&flagParseSecondary, "secondary", "", "companion file, e.g. a pdf rendering of a spreadsheet")
	parseCmd.Flags().BoolVar(&flagParseForce, "force", false, "re-parse even if the file is unchanged")

	rootCmd.AddCommand(parseCmd, sourcesCmd, updateCmd)
}
