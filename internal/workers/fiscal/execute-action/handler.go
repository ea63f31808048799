// internal/workers/fiscal/execute-action/handler.go
package executeaction

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "fiscal-assistant/internal/common/errors"
	"fiscal-assistant/internal/common/logger"
	"fiscal-assistant/internal/common/metrics"
	"fiscal-assistant/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "execute-action"
)

// ActionExecutor is satisfied by *executor.Executor.
type ActionExecutor interface {
	Execute(ctx context.Context, tenantID string, plan *models.ActionPlan, conf *models.Confirmation) (*models.ExecutionResult, error)
}

type Handler struct {
	config   *Config
	executor ActionExecutor
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, executor ActionExecutor, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
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
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	if input.TenantID == "" {
		return nil, apperrors.NewInvalidInputError("tenantId is required")
	}
	if input.Plan == nil || input.Plan.Action == "" {
		return nil, apperrors.NewInvalidInputError("plan with an action is required")
	}
	return &input, nil
}

// execute attaches the user-facing message to the error so the process can still
// answer the user when the job throws.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.executor.Execute(ctx, input.TenantID, input.Plan, input.Confirmation)
	if err != nil {
		stdErr := apperrors.Normalize(err)
		if result != nil && result.Message != "" {
			stdErr = stdErr.WithMetadata("userMessage", result.Message)
		}
		return nil, stdErr
	}
	return outputFrom(result), nil
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
	h.logger.Info("action executed", map[string]interface{}{
		"jobKey":  job.Key,
		"planId":  output.PlanID,
		"action":  string(output.Action),
		"success": output.Success,
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
