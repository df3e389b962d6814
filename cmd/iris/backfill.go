package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/mpetrov/iris"
)

const backfillWorkers = 4

// runBackfill captions catalog rows that have no caption yet. Each upload
// runs through a throwaway session so the full build/call/extract path is
// exercised, then the session is cleared.
func runBackfill(ctx context.Context, svc *iris.Service, db *iris.DB, model, backend string, count int, logger *log.Logger) error {
	uploads, err := db.UploadsToCaption(ctx)
	if err != nil {
		return err
	}
	if count > -1 {
		uploads = uploads[:min(len(uploads), count)]
	}
	logger.Info("backfill starting", "uploads", len(uploads))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillWorkers)

	for _, up := range uploads {
		g.Go(func() error {
			data, err := os.ReadFile(up.Path)
			if err != nil {
				// Files can vanish between upload and backfill; skip them.
				logger.Warn("skipping unreadable upload", "path", up.Path, "err", err)
				return nil
			}

			key := fmt.Sprintf("backfill/%d", up.Id)
			start := time.Now()
			caption, err := svc.StartConversation(ctx, key, "Describe this image.", data)
			svc.ClearSession(key)
			if err != nil {
				return fmt.Errorf("captioning %s: %w", up.Path, err)
			}

			_, fname := filepath.Split(up.Path)
			logger.Info("captioned", "file", fname, "elapsed", time.Since(start).Round(time.Second))

			return db.SetCaption(ctx, up.Id, caption, model, backend, time.Now())
		})
	}

	return g.Wait()
}
