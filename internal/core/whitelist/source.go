package whitelist

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/robfig/cron/v3"

	"Embedkit/internal/core/fetch"
)

// maxDocumentBytes caps a remote whitelist document.
const maxDocumentBytes = 16 << 20

// Source produces a raw whitelist document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads the document from a local file.
type FileSource struct {
	Path string
}

// Fetch reads the file.
func (f FileSource) Fetch(context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read whitelist file: %w", err)
	}
	return data, nil
}

// Fetcher starts fetches. *fetch.Engine satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, uri string, opts fetch.Options) *fetch.Request
}

// URLSource downloads the document through the fetch engine.
type URLSource struct {
	URL     string
	Fetcher Fetcher
}

// Fetch downloads the document.
func (u URLSource) Fetch(ctx context.Context) ([]byte, error) {
	req := u.Fetcher.Fetch(ctx, u.URL, fetch.Options{AsBuffer: true})
	resp, err := req.Wait(ctx)
	if err != nil {
		req.Abort()
		return nil, fmt.Errorf("failed to fetch whitelist: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch whitelist: status %d", resp.StatusCode)
	}
	return resp.ReadAll(maxDocumentBytes)
}

// Reload fetches from src and installs the result.
func (s *Store) Reload(ctx context.Context, src Source) error {
	if src == nil {
		return ErrNoSource
	}
	data, err := src.Fetch(ctx)
	if err != nil {
		return err
	}
	return s.Load(data)
}

// StartReloadJob reloads from src on a fixed schedule ("@every 1h" style
// cron expression) and returns a stop function that waits for a running reload to
// finish. Failed reloads are logged and keep the previous snapshot.
func (s *Store) StartReloadJob(src Source, schedule string) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := s.Reload(context.Background(), src); err != nil {
			slog.Error("[WHITELIST] reload failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reload schedule %q: %w", schedule, err)
	}

	c.Start()
	slog.Info("[WHITELIST] reload job started", "schedule", schedule)

	return func() {
		<-c.Stop().Done()
		slog.Info("[WHITELIST] reload job stopped")
	}, nil
}
