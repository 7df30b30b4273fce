package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
)

// Termination records how a request released its connection.
type Termination int32

const (
	// Pending means the request still owns its connection.
	Pending Termination = iota
	// Drained means the body was read to EOF.
	Drained
	// Aborted means Abort was called, the body was closed early or the caller's context was cancelled.
	Aborted
	// TimedOut means the request timer fired.
	TimedOut
	// Errored means the transport or decoder failed.
	Errored
)

func (t Termination) String() string {
	switch t {
	case Drained:
		return "drained"
	case Aborted:
		return "aborted"
	case TimedOut:
		return "timed_out"
	case Errored:
		return "errored"
	default:
		return "pending"
	}
}

// Response is a received response whose Body is already decompressed.
// Closing Body before EOF aborts the request.
type Response struct {
	StatusCode int
	Header     http.Header
	// URL is the final URL after redirects.
	URL  *url.URL
	Body io.ReadCloser
	// Decoded reports whether a gzip or deflate Content-Encoding was removed.
	Decoded bool
}

// ReadAll reads at most limit bytes of the body and closes it. A body longer
// than limit is truncated without error. limit <= 0 reads everything.
func (r *Response) ReadAll(limit int64) ([]byte, error) {
	defer r.Body.Close()
	var src io.Reader = r.Body
	if limit > 0 {
		src = io.LimitReader(r.Body, limit)
	}
	return io.ReadAll(src)
}

// Request is the handle for one logical fetch. The outcome is delivered once,
// and the request terminates exactly once.
type Request struct {
	// ID correlates log lines for this request.
	ID string
	// URI is the requested address.
	URI string

	ctx     context.Context
	cancel  context.CancelFunc
	aborted atomic.Bool

	ready    chan struct{}
	response *Response
	err      error

	termOnce    sync.Once
	termination atomic.Int32
	done        chan struct{}
}

func newRequest(ctx context.Context, cancel context.CancelFunc, id, uri string) *Request {
	r := &Request{
		ID:     id,
		URI:    uri,
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}

	// The operation context carries the single timer. When it ends on its own
	// (deadline or parent cancellation) the request terminates with it.
	context.AfterFunc(ctx, func() {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.terminate(TimedOut)
			return
		}
		r.terminate(Aborted)
	})

	return r
}

// Ready is closed once the outcome is available.
func (r *Request) Ready() <-chan struct{} {
	return r.ready
}

// Outcome returns the delivered response or error. It must only be called
// after Ready is closed.
func (r *Request) Outcome() (*Response, error) {
	return r.response, r.err
}

// Wait blocks until the outcome is delivered or ctx ends. Ending ctx does not
// abort the request.
func (r *Request) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-r.ready:
		return r.response, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Abort cancels the request. It is safe to call any number of times and
// from any goroutine; after the first call it has no effect.
func (r *Request) Abort() {
	if r.aborted.CompareAndSwap(false, true) {
		r.terminate(Aborted)
	}
}

// Done is closed once the request has terminated.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Termination reports how the request ended, or Pending.
func (r *Request) Termination() Termination {
	return Termination(r.termination.Load())
}

// terminate releases the connection and stops the timer. Only the first call
// has an effect.
func (r *Request) terminate(reason Termination) {
	r.termOnce.Do(func() {
		r.termination.Store(int32(reason))
		r.cancel()
		close(r.done)
		slog.Debug("[FETCH] request terminated", "id", r.ID, "uri", r.URI, "reason", reason.String())
	})
}

func (r *Request) deliver(resp *Response, err error) {
	r.response = resp
	r.err = err
	close(r.ready)
}

func (r *Request) run(e *Engine, opts Options) {
	httpReq, err := e.newHTTPRequest(r.ctx, r.URI, opts)
	if err != nil {
		r.fail(err)
		return
	}

	slog.Debug("[FETCH] request started", "id", r.ID, "uri", r.URI)

	resp, err := e.client(opts).Do(httpReq)
	if err != nil {
		r.fail(err)
		return
	}

	reader, decoded, err := decodeBody(resp)
	if err != nil {
		_ = resp.Body.Close()
		r.fail(err)
		return
	}
	if !opts.AsBuffer {
		reader = latin1Reader(reader)
	}

	header := resp.Header.Clone()
	if decoded {
		header.Del("Content-Encoding")
		header.Del("Content-Length")
	}

	r.deliver(&Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		URL:        resp.Request.URL,
		Body:       &body{req: r, reader: reader, raw: resp.Body},
		Decoded:    decoded,
	}, nil)
}

func (r *Request) fail(err error) {
	err = r.classify(err)

	reason := Errored
	switch {
	case errors.Is(err, ErrTimeout):
		reason = TimedOut
	case errors.Is(err, ErrAborted):
		reason = Aborted
	}
	r.terminate(reason)

	slog.Debug("[FETCH] request failed", "id", r.ID, "uri", r.URI, "error", err)
	r.deliver(nil, err)
}

func (r *Request) classify(err error) error {
	if r.aborted.Load() && errors.Is(err, context.Canceled) {
		return ErrAborted
	}
	return classify(err, r.ctx)
}

// body terminates its request on EOF or Close and maps read errors onto the
// package sentinels.
type body struct {
	req    *Request
	reader io.Reader
	raw    io.ReadCloser
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.reader.Read(p)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		b.req.terminate(Drained)
	default:
		err = b.req.classify(err)
		if errors.Is(err, ErrTimeout) {
			b.req.terminate(TimedOut)
		} else if errors.Is(err, ErrAborted) {
			b.req.terminate(Aborted)
		} else {
			b.req.terminate(Errored)
		}
	}
	return n, err
}

func (b *body) Close() error {
	b.req.terminate(Aborted)
	return b.raw.Close()
}
