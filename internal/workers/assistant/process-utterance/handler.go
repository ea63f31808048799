// internal/workers/assistant/process-utterance/handler.go
package processutterance

import (
	"context"
	"encoding/json"
	"fmt"

	"fiscal-assistant/internal/assistant/orchestrator"
	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/common/metrics"
	"fiscal-assistant/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "process-utterance"
)

const executionFallbackReply = "Não consegui concluir agora. Tente novamente em instantes."

// TurnHandler is satisfied by *orchestrator.Orchestrator.
type TurnHandler interface {
	Handle(ctx context.Context, utt models.Utterance) *orchestrator.Response
}

// ActionExecutor is satisfied by *executor.Executor.
type ActionExecutor interface {
	Execute(ctx context.Context, tenantID string, plan *models.ActionPlan, conf *models.Confirmation) (*models.ExecutionResult, error)
}

type Handler struct {
	config   *Config
	turns    TurnHandler
	executor ActionExecutor
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

// NewHandler wires the turn pipeline. A nil executor leaves confirmed plans to a later
// execute-action task in the process.
func NewHandler(config *Config, turns TurnHandler, executor ActionExecutor, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		turns:    turns,
		executor: executor,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.ErrCodeInvalidInput)).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, h.execute(ctx, input))
}

func parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	if input.TenantID == "" || input.UserID == "" {
		return nil, apperrors.NewInvalidInputError("tenantId and userId are required")
	}
	return &input, nil
}

// execute never fails: the user always gets a reply, and execution errors surface as
// errorCode on the output.
func (h *Handler) execute(ctx context.Context, input *Input) *Output {
	resp := h.turns.Handle(ctx, input.utterance())
	out := &Output{
		Reply: resp.Plan.Explanation,
		Route: resp.Route,
		Plan:  resp.Plan,
	}
	if resp.Confirmation == nil || h.executor == nil {
		return out
	}

	out.Executed = true
	result, err := h.executor.Execute(ctx, input.TenantID, resp.Plan, resp.Confirmation)
	out.Result = result
	if result != nil && result.Message != "" {
		out.Reply = result.Message
	}
	if err != nil {
		stdErr := apperrors.Normalize(err)
		out.ErrorCode = string(stdErr.Code)
		if result == nil || result.Message == "" {
			out.Reply = executionFallbackReply
		}
		h.logger.Warn("confirmed action failed", map[string]interface{}{
			"planId":    resp.Plan.ID,
			"action":    string(resp.Plan.Action),
			"errorCode": out.ErrorCode,
			"details":   stdErr.Details,
		})
	}
	return out
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	return h.execute(ctx, input)
}
