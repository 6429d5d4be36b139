package worker

import (
	"context"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// HTTPInvoker posts invocations to a worker over HTTP. The request runs
// detached from the caller's context, so the caller can acknowledge the user
// right away.
type HTTPInvoker struct {
	client  *http.Client
	baseURL string
	log     *zap.Logger
	wg      sync.WaitGroup
}

func NewHTTPInvoker(client *http.Client, baseURL string, log *zap.Logger) *HTTPInvoker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPInvoker{client: client, baseURL: baseURL, log: log.Named("invoker")}
}

func (h *HTTPInvoker) Invoke(ctx context.Context, inv Invocation) error {
	req, err := inv.Request(context.WithoutCancel(ctx), h.baseURL)
	if err != nil {
		return err
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		log := h.log.With(zap.String("invocation", inv.ID))

		resp, err := h.client.Do(req)
		if err != nil {
			log.Error("Invoke: worker request failed", zap.Error(err))
			return
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= http.StatusBadRequest {
			log.Error("Invoke: worker rejected invocation", zap.Int("status", resp.StatusCode))
			return
		}
		log.Debug("Invoke: delivered", zap.Int("status", resp.StatusCode))
	}()
	return nil
}

// Wait blocks until every in-flight invocation has finished.
func (h *HTTPInvoker) Wait() {
	h.wg.Wait()
}
