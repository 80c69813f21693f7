package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdewitt/citelens"
	"github.com/pdewitt/citelens/citation"
)

var (
	flagExtractSchema string
	flagExtractOut    string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run LLM extraction over all sources and resolve citations",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		fields, err := engine.Extract(cmd.Context(), flagExtractSchema)
		if err != nil {
			return err
		}

		printFields(cmd.Context(), engine, fields)

		if flagExtractOut != "" {
			payload, err := engine.Payload(cmd.Context())
			if err != nil {
				return err
			}
			if err := payload.WriteFile(flagExtractOut); err != nil {
				return fmt.Errorf("writing payload: %w", err)
			}
			color.Green("✓ payload written to %s", flagExtractOut)
		}
		return nil
	},
}

func printFields(ctx context.Context, engine citelens.Engine, fields []citation.ExtractedField) {
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	texts := make(map[string]string)
	load := func(id string) (string, error) {
		return engine.Store().SourceText(ctx, id)
	}
	for _, f := range fields {
		bold.Printf("%s", f.Label)
		fmt.Printf(": %s", f.Value)
		faint.Printf("  [%d citation(s)]\n", len(f.Citations))
		if prev := fieldPreview(f, texts, load); prev != "" {
			faint.Printf("    %s\n", prev)
		}
	}
}

// fieldPreview shows the sentences around where the field's first
// citation was found. Source texts are cached across fields so a run
// with many fields loads each document once.
func fieldPreview(f citation.ExtractedField, texts map[string]string, load func(string) (string, error)) string {
	if len(f.Citations) == 0 {
		return ""
	}
	id := f.Citations[0].SourceID
	text, ok := texts[id]
	if !ok {
		t, err := load(id)
		if err != nil {
			t = ""
		}
		texts[id] = t
		text = t
	}
	return citelens.Preview(text, f.Value)
}

func init() {
	extractCmd.Flags().StringVar(&flagExtractSchema, "schema", "", "path to the extraction schema (YAML)")
	extractCmd.Flags().StringVar(&flagExtractOut, "out", "", "write the resulting payload to this file")
	extractCmd.MarkFlagRequired("schema")

	rootCmd.AddCommand(extractCmd)
}
