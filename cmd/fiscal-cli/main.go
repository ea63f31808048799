// Command fiscal-cli runs the assistant in-process over memory stores for local
// experiments: a chat loop, and inspection of the classifier, extractors and the
// language model function registry.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fiscal-assistant/internal/assistant/pipeline"
	"fiscal-assistant/internal/common/config"
	"fiscal-assistant/internal/common/logger"
)

var (
	configPath string
	seedPath   string
	tenantID   string
	userID     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "fiscal-cli",
	Short:         "Talk to the fiscal assistant without any infrastructure",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: built-in defaults, no model)")
	rootCmd.PersistentFlags().StringVar(&seedPath, "seed", "", "JSON file with counterparties, invoices, registration and plan")
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", demoTenant, "Tenant the conversation runs as")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "cli-user", "User id for history and pending plans")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline decisions to stderr")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(operationsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Defaults(), nil
	}
	return config.LoadFromFile(configPath)
}

func newLogger() logger.Logger {
	if verbose {
		return logger.NewStructured("debug", "console")
	}
	return logger.NewNoOpLogger()
}

// buildPipeline seeds memory stores and assembles the full pipeline over them.
func buildPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	seed := demoSeed()
	if seedPath != "" {
		if seed, err = readSeed(seedPath); err != nil {
			return nil, err
		}
	}
	return pipeline.New(ctx, cfg, seed.stores(tenantID), newLogger())
}
