package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/codeskytz/smmbot/internal/domain/model"
)

// OrderStatusFacade exposes the subset of application functionality required by the poller.
type OrderStatusFacade interface {
	OrdersForPolling(ctx context.Context, limit int) ([]model.Order, error)
	RemoteStatus(ctx context.Context, remoteID string) (json.RawMessage, error)
	ApplyRemoteStatus(ctx context.Context, order *model.Order, reply json.RawMessage)
}

// StatusPoller polls the reseller panel and reconciles order statuses concurrently.
type StatusPoller struct {
	facade       OrderStatusFacade
	pollInterval time.Duration
	batchSize    int
	workers      int
	logger       *slog.Logger

	jobs   chan model.Order
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewStatusPoller constructs the status poller worker pool.
func NewStatusPoller(facade OrderStatusFacade, pollInterval time.Duration, batchSize, workers int, logger *slog.Logger) *StatusPoller {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &StatusPoller{
		facade:       facade,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		workers:      workers,
		logger:       logger,
		jobs:         make(chan model.Order, batchSize*workers),
	}
}

// Start launches background polling.
func (p *StatusPoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}

	p.wg.Add(1)
	go p.dispatch(runCtx)
}

// Stop waits for all workers to finish.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *StatusPoller) dispatch(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.jobs)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetchAndDispatch(ctx)
		}
	}
}

func (p *StatusPoller) fetchAndDispatch(ctx context.Context) {
	orders, err := p.facade.OrdersForPolling(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("fetch orders for polling failed", slog.String("error", err.Error()))
		return
	}
	for _, order := range orders {
		select {
		case <-ctx.Done():
			return
		case p.jobs <- order:
		}
	}
}

func (p *StatusPoller) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case order, ok := <-p.jobs:
			if !ok {
				return
			}
			p.handleOrder(ctx, order)
		}
	}
}

func (p *StatusPoller) handleOrder(ctx context.Context, order model.Order) {
	if order.RemoteOrderID == nil || *order.RemoteOrderID == "" {
		return
	}
	reply, err := p.facade.RemoteStatus(ctx, *order.RemoteOrderID)
	if err != nil {
		p.logger.Error("remote status fetch failed",
			slog.String("order", order.ID),
			slog.String("remote_order", *order.RemoteOrderID),
			slog.String("error", err.Error()))
		return
	}
	p.facade.ApplyRemoteStatus(ctx, &order, reply)
}
