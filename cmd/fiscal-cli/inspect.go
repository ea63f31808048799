package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fiscal-assistant/internal/assistant/llm"
	"fiscal-assistant/internal/nlu/extract"
	"fiscal-assistant/internal/nlu/intent"
	"fiscal-assistant/pkg/registry"
)

var writeRegistry bool

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Show the ranked intent classification of an utterance",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result := intent.NewClassifier(intent.Catalog()).Classify(strings.Join(args, " "))
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <text>",
	Short: "Show the entities extracted from an utterance",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), extract.All(strings.Join(args, " ")))
	},
}

var operationsCmd = &cobra.Command{
	Use:   "operations",
	Short: "Print the operation registry offered to the language model",
	Args:  cobra.NoArgs,
	RunE:  runOperations,
}

func init() {
	operationsCmd.Flags().BoolVarP(&writeRegistry, "write", "w", false, "Write the registry to registry.path instead of stdout")
}

func runOperations(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := llm.Registry(llm.Operations(intent.Catalog()), cfg.App.Version, time.Now())
	if err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	if !writeRegistry {
		return printJSON(cmd.OutOrStdout(), reg)
	}
	if err := registry.SaveRegistry(reg, cfg.Registry.Path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d operations to %s\n", len(reg.Operations), cfg.Registry.Path)
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
