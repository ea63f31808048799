package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"fiscal-assistant/internal/assistant/pipeline"
	"fiscal-assistant/internal/models"
)

var showPlan bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation; confirmed actions run against the in-memory platform",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&showPlan, "plan", false, "Print the action and route of every turn")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Assistente fiscal. Digite 'sair' para encerrar.")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "sair" || line == "exit" {
			return nil
		}
		turn(ctx, p, out, cmd.ErrOrStderr(), line)
	}
}

// turn answers one line and executes the plan when the line confirmed it.
func turn(ctx context.Context, p *pipeline.Pipeline, out, errOut io.Writer, text string) {
	resp := p.Orchestrator.Handle(ctx, models.Utterance{
		Text:  text,
		Hints: models.Hints{TenantID: tenantID, UserID: userID},
	})
	if showPlan {
		fmt.Fprintf(out, "[%s via %s]\n", resp.Plan.Action, resp.Route)
	}

	if resp.Confirmation == nil {
		fmt.Fprintln(out, resp.Plan.Explanation)
		return
	}

	result, err := p.Executor.Execute(ctx, tenantID, resp.Plan, resp.Confirmation)
	switch {
	case result != nil && result.Message != "":
		fmt.Fprintln(out, result.Message)
	case err != nil:
		fmt.Fprintln(out, "Não consegui concluir agora. Tente novamente em instantes.")
	}
	if err != nil && verbose {
		fmt.Fprintln(errOut, "execution error:", err)
	}
}
