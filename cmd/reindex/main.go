package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/app"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/types"
)

// reindex re-embeds ledger rows written by an older embedding model and
// replaces their vector points through the ledger, batch by batch.
func main() {
	var dryRun bool
	var limit int
	var batch int
	flag.BoolVar(&dryRun, "dry-run", false, "list stale rows without re-embedding")
	flag.IntVar(&limit, "limit", 0, "stop after this many rows (0 = all)")
	flag.IntVar(&batch, "batch", 200, "rows fetched per ledger scan")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	log := application.Log.With("cmd", "reindex")
	ctx := context.Background()
	currentModel := application.Services.Encoder.ModelName()
	httpClient := &http.Client{Timeout: 30 * time.Second}

	processed, failed, err := runReindex(ctx, log, dryRun, limit, batch,
		func(ctx context.Context, fetch int) ([]*types.EmbeddingRecord, error) {
			return application.Repos.EmbeddingRecord.ListByModelNot(ctx, nil, currentModel, fetch)
		},
		func(ctx context.Context, row *types.EmbeddingRecord) error {
			return reembed(ctx, application, httpClient, row)
		},
	)
	if err != nil {
		log.Error("reindex aborted", "error", err)
		os.Exit(1)
	}
	log.Info("reindex finished", "processed", processed, "failed", failed, "model", currentModel)
}

// runReindex drains stale rows scan by scan. Rows whose re-embedding fails
// keep their old model_name, so the next scan returns them again; a batch
// with zero successes would therefore be refetched unchanged forever, and
// the loop stops there instead.
func runReindex(
	ctx context.Context,
	log *logger.Logger,
	dryRun bool,
	limit, batch int,
	list func(ctx context.Context, fetch int) ([]*types.EmbeddingRecord, error),
	reembedRow func(ctx context.Context, row *types.EmbeddingRecord) error,
) (processed, failed int, err error) {
	for {
		fetch := batch
		if limit > 0 && limit-processed < fetch {
			fetch = limit - processed
		}
		if fetch <= 0 {
			return processed, failed, nil
		}
		rows, err := list(ctx, fetch)
		if err != nil {
			return processed, failed, fmt.Errorf("list stale embeddings: %w", err)
		}
		if len(rows) == 0 {
			return processed, failed, nil
		}

		succeeded := 0
		for _, row := range rows {
			if dryRun {
				fmt.Printf("%s %s/%s product=%s model=%s\n", row.EmbeddingType, row.Collection, row.PointID, row.ProductID, row.ModelName)
				processed++
				continue
			}
			if err := reembedRow(ctx, row); err != nil {
				log.Warn("re-embed failed, skipping row", "record_id", row.ID, "type", row.EmbeddingType, "error", err)
				failed++
				continue
			}
			processed++
			succeeded++
		}
		if dryRun {
			// Dry runs never change model_name, so a second scan would
			// return the same rows forever.
			return processed, failed, nil
		}
		if succeeded == 0 {
			log.Warn("batch produced no successful re-embeds, stopping", "failed", failed)
			return processed, failed, nil
		}
	}
}

func reembed(ctx context.Context, application *app.App, httpClient *http.Client, row *types.EmbeddingRecord) error {
	encoder := application.Services.Encoder
	ledger := application.Services.Ledger

	switch row.EmbeddingType {
	case types.EmbeddingTypeText:
		product, err := application.Repos.Product.GetByID(ctx, nil, row.ProductID)
		if err != nil {
			return err
		}
		parts := []string{product.Title}
		if product.Description != "" {
			parts = append(parts, product.Description)
		}
		if product.PromoTagline != "" {
			parts = append(parts, product.PromoTagline)
		}
		vector, err := encoder.EncodeText(ctx, strings.Join(parts, ". "))
		if err != nil {
			return err
		}
		_, err = ledger.RecordEmbedding(ctx, row.ProductID, nil, row.EmbeddingType, vector, encoder.ModelName())
		return err

	case types.EmbeddingTypeImage, types.EmbeddingTypeCaption:
		if row.ImageID == nil {
			return fmt.Errorf("image-owned record %s has no image ID", row.ID)
		}
		img, err := application.Repos.ProductImage.GetByID(ctx, nil, *row.ImageID)
		if err != nil {
			return err
		}
		imageBytes, err := fetchImage(ctx, httpClient, img.ImageURL)
		if err != nil {
			return err
		}

		var vector []float32
		if row.EmbeddingType == types.EmbeddingTypeImage {
			vector, err = encoder.EncodeImage(ctx, imageBytes)
		} else {
			var caption string
			caption, err = encoder.Caption(ctx, imageBytes)
			if err == nil {
				vector, err = encoder.EncodeText(ctx, caption)
			}
		}
		if err != nil {
			return err
		}
		_, err = ledger.RecordEmbedding(ctx, row.ProductID, row.ImageID, row.EmbeddingType, vector, encoder.ModelName())
		return err

	default:
		return fmt.Errorf("unknown embedding type %q", row.EmbeddingType)
	}
}

func fetchImage(ctx context.Context, httpClient *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}
