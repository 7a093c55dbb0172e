package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codeskytz/smmbot/internal/domain/model"
	testhelpers "github.com/codeskytz/smmbot/internal/test"
)

func strPtr(s string) *string { return &s }

func TestNewStatusPollerDefaults(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	poller := NewStatusPoller(&testhelpers.PollerFacadeStub{}, time.Second, 0, 0, logger)
	if poller.batchSize != 1 {
		t.Fatalf("expected batch size default to 1, got %d", poller.batchSize)
	}
	if poller.workers != 1 {
		t.Fatalf("expected workers default to 1, got %d", poller.workers)
	}
}

func TestStatusPollerReconcilesOrders(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	facade := &testhelpers.PollerFacadeStub{
		Orders: [][]model.Order{{{ID: "ord-1", RemoteOrderID: strPtr("777"), Status: model.OrderStatusProcessing}}},
	}
	poller := NewStatusPoller(facade, 10*time.Millisecond, 1, 1, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)

	deadline := time.After(500 * time.Millisecond)
	for {
		facade.Lock()
		applied := len(facade.Applied) > 0
		facade.Unlock()
		if applied {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timeout waiting for status reconciliation")
		case <-time.After(10 * time.Millisecond):
		}
	}

	poller.Stop()
	facade.Lock()
	defer facade.Unlock()
	if len(facade.Applied) == 0 {
		t.Fatalf("expected remote status application")
	}
	if facade.Applied[0].OrderID != "ord-1" {
		t.Fatalf("expected ord-1, got %s", facade.Applied[0].OrderID)
	}
}

func TestStatusPollerSkipsOrdersWithoutRemoteID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	statusCalls := int32(0)
	facade := &testhelpers.PollerFacadeStub{
		Orders: [][]model.Order{{
			{ID: "ord-1", Status: model.OrderStatusProcessing},
			{ID: "ord-2", RemoteOrderID: strPtr("42"), Status: model.OrderStatusProcessing},
		}},
		StatusFn: func(ctx context.Context, remoteID string) (json.RawMessage, error) {
			atomic.AddInt32(&statusCalls, 1)
			if remoteID != "42" {
				t.Errorf("unexpected remote id %s", remoteID)
			}
			return json.RawMessage(`{"status": "Completed"}`), nil
		},
	}
	poller := NewStatusPoller(facade, 5*time.Millisecond, 2, 1, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)

	deadline := time.After(500 * time.Millisecond)
	for atomic.LoadInt32(&statusCalls) == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for remote status call")
		case <-time.After(10 * time.Millisecond):
		}
	}
	poller.Stop()

	if atomic.LoadInt32(&statusCalls) != 1 {
		t.Fatalf("expected one remote status call, got %d", statusCalls)
	}
}

func TestStatusPollerContinuesAfterFetchError(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	attempts := int32(0)
	facade := &testhelpers.PollerFacadeStub{
		Orders: [][]model.Order{{{ID: "ord-1", RemoteOrderID: strPtr("1"), Status: model.OrderStatusProcessing}},
			{{ID: "ord-1", RemoteOrderID: strPtr("1"), Status: model.OrderStatusProcessing}}},
		StatusFn: func(ctx context.Context, remoteID string) (json.RawMessage, error) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				return nil, errors.New("panel unavailable")
			}
			return json.RawMessage(`{"status": "Completed"}`), nil
		},
	}

	poller := NewStatusPoller(facade, 5*time.Millisecond, 1, 1, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)

	deadline := time.After(time.Second)
	for {
		facade.Lock()
		if len(facade.Applied) > 0 {
			facade.Unlock()
			break
		}
		facade.Unlock()
		select {
		case <-deadline:
			t.Fatal("timeout waiting for retry")
		case <-time.After(10 * time.Millisecond):
		}
	}
	poller.Stop()
}
