package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/logger"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/repos"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/types"
	"github.com/jibbs1703/Retail-Chat-Agent/internal/utils"
)

const (
	maxImageBytes         = 16 << 20
	imageEmbedConcurrency = 4
)

// IngestInput is one scraped catalog item. RawPrice is the scraped price
// string ("£1,024.00"); ImageURLs are in display order, first is primary.
type IngestInput struct {
	ExternalID   *string        `json:"external_id,omitempty"`
	Title        string         `json:"title"`
	RawPrice     string         `json:"raw_price"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	SizeOptions  datatypes.JSON `json:"size_options,omitempty"`
	Financing    datatypes.JSON `json:"financing,omitempty"`
	PromoTagline string         `json:"promo_tagline"`
	ProductURL   string         `json:"product_url"`
	ImageURLs    []string       `json:"image_urls"`
}

// IngestService writes a scraped product into the relational store and
// pushes its text, image, and caption embeddings through the ledger.
// Re-ingesting the same product URL replaces, never duplicates.
type IngestService interface {
	Ingest(ctx context.Context, input IngestInput) (*types.Product, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
}

type ingestService struct {
	log        *logger.Logger
	products   repos.ProductRepo
	images     repos.ProductImageRepo
	encoder    EncoderService
	ledger     LedgerService
	httpClient *http.Client
}

func NewIngestService(
	log *logger.Logger,
	products repos.ProductRepo,
	images repos.ProductImageRepo,
	encoder EncoderService,
	ledger LedgerService,
	httpClient *http.Client,
) (IngestService, error) {
	if products == nil || images == nil || encoder == nil || ledger == nil {
		return nil, fmt.Errorf("ingest service dependencies required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ingestService{
		log:        log.With("service", "IngestService"),
		products:   products,
		images:     images,
		encoder:    encoder,
		ledger:     ledger,
		httpClient: httpClient,
	}, nil
}

func (s *ingestService) Ingest(ctx context.Context, input IngestInput) (*types.Product, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("product title required")
	}
	if strings.TrimSpace(input.ProductURL) == "" {
		return nil, fmt.Errorf("product URL required")
	}

	amount, currency, err := utils.ParsePrice(input.RawPrice)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	if currency == "" {
		currency = "USD"
	}

	product, err := s.products.Upsert(ctx, nil, &types.Product{
		ExternalID:   input.ExternalID,
		Title:        input.Title,
		Price:        amount,
		Currency:     currency,
		Description:  input.Description,
		Category:     input.Category,
		SizeOptions:  input.SizeOptions,
		Financing:    input.Financing,
		PromoTagline: input.PromoTagline,
		ProductURL:   input.ProductURL,
		ScrapedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert product: %w", err)
	}

	imageRows := make([]*types.ProductImage, len(input.ImageURLs))
	for i, url := range input.ImageURLs {
		imageRows[i] = &types.ProductImage{
			ImageURL:   url,
			StorageKey: utils.StorageKey(input.Category, input.Title, i),
			IsPrimary:  i == 0,
			Position:   i,
		}
	}
	if err := s.dropVanishedImages(ctx, product.ID, input.ImageURLs); err != nil {
		return nil, err
	}
	storedImages, err := s.images.ReplaceForProduct(ctx, nil, product.ID, imageRows)
	if err != nil {
		return nil, fmt.Errorf("replace images: %w", err)
	}

	if err := s.embedProductText(ctx, product); err != nil {
		return nil, err
	}

	// Image and caption embeddings degrade per image: a dead CDN link must not
	// sink the whole product.
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(imageEmbedConcurrency)
	for _, img := range storedImages {
		img := img
		group.Go(func() error {
			if err := s.embedImage(groupCtx, product.ID, img); err != nil {
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				s.log.Warn("image embedding skipped", "product_id", product.ID, "image_url", img.ImageURL, "error", err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return s.products.GetByID(ctx, nil, product.ID)
}

// dropVanishedImages removes image rows whose URL is no longer in the ingest
// payload, going through the ledger so their vector points are deleted with
// them. Letting the rows cascade alone would leave orphaned points behind,
// and every later search hitting one would report index drift.
func (s *ingestService) dropVanishedImages(ctx context.Context, productID uuid.UUID, imageURLs []string) error {
	existing, err := s.images.GetByProductID(ctx, nil, productID)
	if err != nil {
		return err
	}
	kept := make(map[string]struct{}, len(imageURLs))
	for _, url := range imageURLs {
		kept[url] = struct{}{}
	}
	for _, img := range existing {
		if _, ok := kept[img.ImageURL]; ok {
			continue
		}
		if err := s.ledger.DeleteImage(ctx, img.ID); err != nil {
			return fmt.Errorf("drop vanished image %s: %w", img.ImageURL, err)
		}
	}
	return nil
}

func (s *ingestService) embedProductText(ctx context.Context, product *types.Product) error {
	parts := []string{product.Title}
	if product.Description != "" {
		parts = append(parts, product.Description)
	}
	if product.PromoTagline != "" {
		parts = append(parts, product.PromoTagline)
	}

	vector, err := s.encoder.EncodeText(ctx, strings.Join(parts, ". "))
	if err != nil {
		return fmt.Errorf("encode product text: %w", err)
	}
	if _, err := s.ledger.RecordEmbedding(ctx, product.ID, nil, types.EmbeddingTypeText, vector, s.encoder.ModelName()); err != nil {
		return fmt.Errorf("record text embedding: %w", err)
	}
	return nil
}

func (s *ingestService) embedImage(ctx context.Context, productID uuid.UUID, img *types.ProductImage) error {
	imageBytes, err := s.fetchImage(ctx, img.ImageURL)
	if err != nil {
		return err
	}

	vector, err := s.encoder.EncodeImage(ctx, imageBytes)
	if err != nil {
		return err
	}
	if _, err := s.ledger.RecordEmbedding(ctx, productID, &img.ID, types.EmbeddingTypeImage, vector, s.encoder.ModelName()); err != nil {
		return err
	}

	caption, err := s.encoder.Caption(ctx, imageBytes)
	if err != nil || strings.TrimSpace(caption) == "" {
		s.log.Warn("caption embedding skipped", "product_id", productID, "image_url", img.ImageURL, "error", err)
		return nil
	}
	captionVector, err := s.encoder.EncodeText(ctx, caption)
	if err != nil {
		s.log.Warn("caption embedding skipped", "product_id", productID, "image_url", img.ImageURL, "error", err)
		return nil
	}
	if _, err := s.ledger.RecordEmbedding(ctx, productID, &img.ID, types.EmbeddingTypeCaption, captionVector, s.encoder.ModelName()); err != nil {
		return err
	}
	return nil
}

func (s *ingestService) fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(raw) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return raw, nil
}

func (s *ingestService) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	return s.ledger.DeleteProduct(ctx, productID)
}
