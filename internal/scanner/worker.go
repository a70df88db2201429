package scanner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxvaer/gmapscan/internal/classify"
)

// MinWorkers is the lower bound on pool size.
const MinWorkers = 2

// WorkerConfig holds options for the worker pool.
type WorkerConfig struct {
	Concurrency int
	Key         string
	Throttler   *Throttler
	Logger      *zap.Logger // nil = no logging
}

// RunWorkerPool probes every item with at most max(MinWorkers, Concurrency)
// requests in flight and returns a channel of results. The channel is closed
// once every scheduled item has produced exactly one result. Cancelling ctx
// stops scheduling; items never scheduled produce no result.
func RunWorkerPool(
	ctx context.Context,
	req *Requester,
	items []WorkItem,
	cfg WorkerConfig,
) <-chan Result {
	workers := max(MinWorkers, cfg.Concurrency)
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	throttler := cfg.Throttler
	if throttler == nil {
		throttler = NewThrottler(0, false, nil)
	}

	// Buffered so workers never block on a slow consumer.
	resultsCh := make(chan Result, len(items))

	go func() {
		defer close(resultsCh)

		var g errgroup.Group
		g.SetLimit(workers)

	schedule:
		for i, item := range items {
			if i > 0 {
				if delay := throttler.Delay(); delay > 0 {
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						break schedule
					}
				}
			}
			if ctx.Err() != nil {
				break
			}

			item := item
			g.Go(func() error {
				res := probe(ctx, req, item, cfg.Key, throttler)
				log.Debug("probe_done",
					zap.String("api", res.API),
					zap.Int("status", res.HTTPStatus),
					zap.String("label", string(res.Label)),
					zap.Duration("duration", res.Duration),
					zap.Error(res.Error),
				)
				resultsCh <- res
				return nil
			})
		}

		_ = g.Wait()
	}()

	return resultsCh
}

func probe(ctx context.Context, req *Requester, item WorkItem, key string, throttler *Throttler) Result {
	ep := item.Endpoint
	result := Result{
		Index:  item.Index,
		API:    ep.Name,
		Method: ep.Method,
		URL:    ep.Expand(key),
	}

	resp, err := req.Do(ctx, ep, key)
	if err != nil {
		throttler.RecordError()
		result.Error = err
		result.Label = classify.Undetermined
		result.Reason = fmt.Sprintf("Request failed: %v", err)
		return result
	}
	throttler.RecordStatus(resp.StatusCode)

	result.HTTPStatus = resp.StatusCode
	result.ContentType = resp.ContentType
	result.Duration = resp.Duration
	result.Label, result.Reason = classify.Response(ep.Name, resp.StatusCode, resp.ContentType, resp.Body)
	result.ResponseSnippet = classify.Snippet(resp.Body)
	return result
}
