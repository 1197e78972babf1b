package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"spend-insight/internal/app"
	"spend-insight/internal/httputil"
	"spend-insight/internal/ingest"
	"spend-insight/internal/queue"
)

type ingestTaskPayload struct {
	IDs []string `json:"ids"`
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("ingestor worker starting")

	g, ctx := errgroup.WithContext(context.Background())

	// Run queue worker
	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeIngest, func(ctx context.Context, task queue.Task) error {
			var payload ingestTaskPayload
			if len(task.Payload) > 0 {
				if err := json.Unmarshal(task.Payload, &payload); err != nil {
					return err
				}
			}
			return handleIngest(ctx, deps, payload)
		})
	})

	// Run health check server
	g.Go(func() error {
		return httputil.ServeHealth(deps, "ingestor")
	})

	// Wait for either to fail
	if err := g.Wait(); err != nil {
		deps.Log.Error("ingestor service stopped", "err", err)
	}
}

func handleIngest(ctx context.Context, deps app.Deps, payload ingestTaskPayload) error {
	pipeline := ingest.New(deps.Log, deps.Records, deps.Embedder, deps.Index)

	var (
		res ingest.Result
		err error
	)
	if len(payload.IDs) > 0 {
		res, err = pipeline.RunIDs(ctx, payload.IDs)
	} else {
		res, err = pipeline.Run(ctx)
	}
	if err != nil {
		return err
	}

	// Answers may have changed; stale cached insights must go.
	if err := deps.Cache.InvalidateAll(ctx); err != nil {
		deps.Log.Warn("failed to invalidate insight cache", "err", err)
	}

	deps.Log.Info("ingest task finished", "embedded", res.Embedded, "failed", res.Failed)
	return nil
}
