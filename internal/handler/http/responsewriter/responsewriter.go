// Package responsewriter wraps http.ResponseWriter so middleware can see
// what a handler wrote: the status code and body size feed the access log
// and the request metrics.
package responsewriter

import "net/http"

// Recorder observes writes to the underlying ResponseWriter. Before any
// write it reports status 200, matching net/http's implicit WriteHeader.
type Recorder struct {
	http.ResponseWriter
	status int
	size   int
	wrote  bool
}

// Wrap returns a Recorder around w.
func Wrap(w http.ResponseWriter) *Recorder {
	return &Recorder{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader records and forwards the first status code; later calls are
// dropped so a handler bug cannot corrupt the recorded status.
func (rec *Recorder) WriteHeader(status int) {
	if rec.wrote {
		return
	}
	rec.wrote = true
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// Write forwards the body bytes, implying a 200 when the handler never
// called WriteHeader, and accumulates the written size.
func (rec *Recorder) Write(b []byte) (int, error) {
	if !rec.wrote {
		rec.WriteHeader(http.StatusOK)
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.size += n
	return n, err
}

// Status returns the recorded status code.
func (rec *Recorder) Status() int { return rec.status }

// Size returns the number of body bytes written so far.
func (rec *Recorder) Size() int { return rec.size }

// Flush forwards to the underlying writer when it supports streaming.
func (rec *Recorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer for http.ResponseController.
func (rec *Recorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }
