package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/resilience"
)

const workerQueueGroup = "analysis-workers"

type Subjects struct {
	Reanalysis string
	Events     string
}

type Queue struct {
	conn           *nats.Conn
	subjects       Subjects
	executor       *resilience.Executor
	handlerTimeout time.Duration
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	// HandlerTimeout bounds one delivered request and how long shutdown
	// waits for the drain.
	HandlerTimeout       time.Duration
}

func NewWithOptions(url string, subjects Subjects, options Options) (*Queue, error) {
	if subjects.Reanalysis == "" {
		subjects.Reanalysis = "documents.reanalyze"
	}
	if subjects.Events == "" {
		subjects.Events = "analyses.finalized"
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	handlerTimeout := options.HandlerTimeout
	if handlerTimeout <= 0 {
		handlerTimeout = 2 * time.Minute
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("document-analyzer"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		subjects:       subjects,
		executor:       options.ResilienceExecutor,
		handlerTimeout: handlerTimeout,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishReanalysisRequested(ctx context.Context, req domain.ReanalysisRequest) error {
	return q.publishJSON(ctx, pathReanalysis, q.subjects.Reanalysis, req)
}

func (q *Queue) PublishAnalysisFinalized(ctx context.Context, event domain.AnalysisFinalizedEvent) error {
	return q.publishJSON(ctx, pathEvents, q.subjects.Events, event)
}

func (q *Queue) publishJSON(ctx context.Context, path publishPath, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, path.operation(), call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return publishFailure(path, err)
}

// SubscribeReanalysisRequested blocks until ctx is done, then drains the
// subscription. Handlers run on a context detached from ctx cancellation and
// bounded by the handler timeout, so requests delivered before or during the
// drain still finish.
func (q *Queue) SubscribeReanalysisRequested(ctx context.Context, handler func(context.Context, domain.ReanalysisRequest) error) error {
	// Callbacks of one subscription run serially; holding busy lets
	// shutdown wait for the request being handled when the drain completes.
	var busy sync.Mutex
	sub, err := q.conn.QueueSubscribe(q.subjects.Reanalysis, workerQueueGroup, func(msg *nats.Msg) {
		busy.Lock()
		defer busy.Unlock()
		q.dispatch(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	closed := sub.StatusChanged(nats.SubscriptionClosed)

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}

	drained := make(chan struct{})
	go func() {
		<-closed
		busy.Lock()
		busy.Unlock()
		close(drained)
	}()

	timeout := time.NewTimer(q.handlerTimeout)
	defer timeout.Stop()
	select {
	case <-drained:
	case <-timeout.C:
		slog.Warn("reanalysis_drain_timeout", "timeout", q.handlerTimeout.String())
	}
	return nil
}

func (q *Queue) dispatch(ctx context.Context, data []byte, handler func(context.Context, domain.ReanalysisRequest) error) {
	req, err := decodeReanalysisRequest(data)
	if err != nil {
		slog.Warn("reanalysis_request_dropped", "error", err)
		return
	}

	if ctx.Err() != nil {
		slog.Info("reanalysis_request_draining", "document_id", req.DocumentID)
	}
	handlerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.handlerTimeout)
	defer cancel()

	if err := handler(handlerCtx, req); err != nil {
		slog.Error("reanalysis_handler_failed", "document_id", req.DocumentID, "error", err)
	}
}

func decodeReanalysisRequest(data []byte) (domain.ReanalysisRequest, error) {
	var req domain.ReanalysisRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.ReanalysisRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode reanalysis request", err)
	}
	if req.DocumentID == "" || req.OwnerID == "" {
		return domain.ReanalysisRequest{}, domain.WrapError(domain.ErrInvalidInput, "decode reanalysis request", errors.New("document_id and owner_id are required"))
	}
	return req, nil
}
