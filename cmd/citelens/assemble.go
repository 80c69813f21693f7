package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdewitt/citelens/citation"
	"github.com/pdewitt/citelens/parser"
	"github.com/pdewitt/citelens/resolver"
)

var (
	flagAssembleIn  string
	flagAssembleOut string
)

// assemble resolves a prepared raw-field file against the registered
// sources without calling the LLM. Useful for re-running resolution
// after re-parsing, or for extraction output produced elsewhere.
var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Resolve a raw extraction file against the registered sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(flagAssembleIn)
		if err != nil {
			return fmt.Errorf("reading raw fields: %w", err)
		}
		var raw struct {
			Fields []resolver.RawField `json:"fields"`
		}
		if err := json.Unmarshal(data, &raw.Fields); err != nil {
			// Not a bare array; try the wrapped form.
			if err := json.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("parsing raw fields: %w", err)
			}
		}

		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		ctx := cmd.Context()
		recs, err := engine.ListSources(ctx)
		if err != nil {
			return err
		}

		sources := make([]citation.Source, 0, len(recs))
		docs := make(map[string]*parser.ParseResult, len(recs))
		for _, rec := range recs {
			doc, err := engine.Store().Document(ctx, rec.ID)
			if err != nil {
				return fmt.Errorf("loading source %s: %w", rec.ID, err)
			}
			sources = append(sources, rec.Source)
			docs[rec.ID] = doc
		}

		fields := resolver.NewAssembler(sources, docs).Assemble(raw.Fields)
		if err := engine.Store().SaveFields(ctx, fields); err != nil {
			return fmt.Errorf("saving fields: %w", err)
		}

		printFields(ctx, engine, fields)

		if flagAssembleOut != "" {
			payload, err := engine.Payload(ctx)
			if err != nil {
				return err
			}
			if err := payload.WriteFile(flagAssembleOut); err != nil {
				return fmt.Errorf("writing payload: %w", err)
			}
			color.Green("✓ payload written to %s", flagAssembleOut)
		}
		return nil
	},
}

func init() {
	assembleCmd.Flags().StringVar(&flagAssembleIn, "in", "", "raw extraction file (JSON)")
	assembleCmd.Flags().StringVar(&flagAssembleOut, "out", "", "write the resulting payload to this file")
	assembleCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(assembleCmd)
}
