package worker

import (
	"context"
	"net/http"
)

// Dispatch serves inv in-process and returns the response status.
func Dispatch(ctx context.Context, handler http.Handler, inv Invocation) int {
	req, err := inv.Request(ctx, "")
	if err != nil {
		return http.StatusBadRequest
	}
	w := &statusWriter{header: http.Header{}}
	handler.ServeHTTP(w, req)
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// statusWriter discards the body and keeps the status.
type statusWriter struct {
	header http.Header
	status int
}

func (w *statusWriter) Header() http.Header { return w.header }

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return len(b), nil
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}
