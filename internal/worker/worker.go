// Package worker consumes evaluation requests from the message queue and
// publishes one result envelope per request.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/soltixdb/nelson/internal/compression"
	"github.com/soltixdb/nelson/internal/config"
	"github.com/soltixdb/nelson/internal/logging"
	"github.com/soltixdb/nelson/internal/models"
	"github.com/soltixdb/nelson/internal/queue"
	"github.com/soltixdb/nelson/internal/services"
	"github.com/soltixdb/nelson/internal/utils"
)

// EvaluationWorker evaluates queued requests with the evaluation service
type EvaluationWorker struct {
	logger  *logging.Logger
	queue   queue.Queue
	service *services.EvaluationService
	config  config.QueueConfig

	compressor compression.Compressor

	// Context for subscription handlers
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new EvaluationWorker
func New(logger *logging.Logger, q queue.Queue, service *services.EvaluationService, cfg config.QueueConfig) (*EvaluationWorker, error) {
	if q == nil {
		return nil, fmt.Errorf("queue is nil")
	}
	if service == nil {
		return nil, fmt.Errorf("evaluation service is nil")
	}

	algo := compression.None
	if cfg.CompressionEnabled() {
		algo = compression.Snappy
	}
	compressor, err := compression.GetCompressor(algo)
	if err != nil {
		return nil, err
	}

	return &EvaluationWorker{
		logger:     logger,
		queue:      q,
		service:    service,
		config:     cfg,
		compressor: compressor,
	}, nil
}

// Start subscribes to the request subject. Handlers run until Stop is
// called or ctx is cancelled.
func (w *EvaluationWorker) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.logger.Info("Subscribing to request subject",
		"subject", w.config.RequestSubject,
		"result_subject", w.config.ResultSubject,
		"compression", w.compressor.Algorithm().String())

	if err := w.queue.Subscribe(w.ctx, w.config.RequestSubject, w.handleRequest); err != nil {
		w.cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", w.config.RequestSubject, err)
	}
	w.logger.Info("Evaluation worker started", "subject", w.config.RequestSubject)
	return nil
}

// Stop unsubscribes from the request subject
func (w *EvaluationWorker) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	if err := w.queue.Unsubscribe(w.config.RequestSubject); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", w.config.RequestSubject, err)
	}
	w.logger.Info("Evaluation worker stopped")
	return nil
}

// handleRequest processes one evaluation request. Returning an error asks
// the queue to redeliver, so only failures that may succeed on retry do.
func (w *EvaluationWorker) handleRequest(ctx context.Context, subject string, data []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	payload, err := compression.DecodePayload(data)
	if err != nil {
		w.logger.Error("Failed to decode request payload",
			"error", err,
			"subject", subject,
			"data_len", len(data))
		return nil
	}

	var req models.EvaluateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		w.logger.Error("Failed to parse evaluation request",
			"error", err,
			"subject", subject,
			"data_preview", string(payload[:min(200, len(payload))]))
		return nil
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	log := w.logger.With("request_id", req.RequestID)
	result := models.EvaluationResult{RequestID: req.RequestID}

	resp, err := w.evaluate(ctx, &req)
	switch {
	case err == nil:
		result.Status = models.ResultStatusOK
		result.Response = resp
		log.Info("Evaluation completed",
			"metric", resp.Metric,
			"count", resp.Count,
			"latency_ms", resp.LatencyMs)
	case services.IsClientError(err):
		svcErr, _ := services.AsServiceError(err)
		result.Status = models.ResultStatusError
		result.Error = &models.ErrorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
			Details: svcErr.Details,
		}
		log.Warn("Evaluation rejected", "code", svcErr.Code, "error", err)
	default:
		log.Error("Evaluation failed", "error", err)
		return err
	}

	return w.publishResult(ctx, w.resultSubject(&req), &result)
}

func (w *EvaluationWorker) evaluate(ctx context.Context, m *models.EvaluateRequest) (*models.EvaluateResponse, error) {
	req, err := services.NewEvaluationRequest(m)
	if err != nil {
		return nil, err
	}

	evalCtx, cancel := context.WithTimeout(ctx, utils.DefaultRequestTimeout)
	defer cancel()
	return w.service.Execute(evalCtx, req)
}

func (w *EvaluationWorker) resultSubject(req *models.EvaluateRequest) string {
	if req.ReplySubject != "" {
		return req.ReplySubject
	}
	return w.config.ResultSubject
}

func (w *EvaluationWorker) publishResult(ctx context.Context, subject string, result *models.EvaluationResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	body, err = w.compressor.Compress(body)
	if err != nil {
		return fmt.Errorf("failed to compress result: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, utils.PublishTimeout)
	defer cancel()
	if err := w.queue.Publish(pubCtx, subject, body); err != nil {
		w.logger.Error("Failed to publish result",
			"error", err,
			"subject", subject,
			"request_id", result.RequestID)
		return fmt.Errorf("failed to publish result to %s: %w", subject, err)
	}
	return nil
}
