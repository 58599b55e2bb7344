package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tommyz7/airbnb-analytics/models"
)

const maxThumbnailBytes = 10 * 1024 * 1024

// S3Uploader interface for uploading to S3-compatible storage
type S3Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// ThumbnailQueue lists apartments missing an archived thumbnail and
// records the archive key once one is written.
type ThumbnailQueue interface {
	GetApartmentsWithoutThumbnailArchive(ctx context.Context, limit int) ([]models.Apartment, error)
	SetApartmentThumbnailKey(ctx context.Context, id uuid.UUID, key string) error
}

type ThumbnailWorkerConfig struct {
	BatchSize int
	Interval  time.Duration
}

// ThumbnailWorker downloads listing thumbnails, hashes them, and
// archives them to S3-compatible storage. Listings change or drop
// their photos over time; the archive keeps a copy keyed by content.
type ThumbnailWorker struct {
	store      ThumbnailQueue
	httpClient *http.Client
	uploader   S3Uploader
	cfg        ThumbnailWorkerConfig
	triggerCh  chan struct{}
}

func NewThumbnailWorker(store ThumbnailQueue, httpClient *http.Client, uploader S3Uploader, cfg ThumbnailWorkerConfig) *ThumbnailWorker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	return &ThumbnailWorker{
		store:      store,
		httpClient: httpClient,
		uploader:   uploader,
		cfg:        cfg,
		triggerCh:  make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run immediately
func (w *ThumbnailWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the thumbnail worker loop
func (w *ThumbnailWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Thumbnail worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		case <-w.triggerCh:
			w.processBatch(ctx)
		}
	}
}

func (w *ThumbnailWorker) processBatch(ctx context.Context) {
	apartments, err := w.store.GetApartmentsWithoutThumbnailArchive(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Printf("Thumbnail worker: query error: %v", err)
		return
	}
	if len(apartments) == 0 {
		return
	}

	log.Printf("Thumbnail worker: archiving %d thumbnails", len(apartments))

	var archived, failed int
	for i := range apartments {
		if ctx.Err() != nil {
			return
		}
		a := &apartments[i]

		key, err := w.Archive(ctx, a)
		if err != nil {
			failed++
			log.Printf("Thumbnail worker: failed %d: %v", a.AirbnbID, err)
			continue
		}
		if err := w.store.SetApartmentThumbnailKey(ctx, a.ID, key); err != nil {
			failed++
			log.Printf("Thumbnail worker: failed to record key for %d: %v", a.AirbnbID, err)
			continue
		}
		archived++

		// Rate limit between downloads
		if !pause(ctx, 200*time.Millisecond) {
			return
		}
	}

	if archived > 0 || failed > 0 {
		log.Printf("Thumbnail worker: archived %d, failed %d", archived, failed)
	}
}

// Archive downloads one apartment's thumbnail and uploads it under a
// content-addressed key: thumbnails/{hash_prefix}/{hash}{ext}.
func (w *ThumbnailWorker) Archive(ctx context.Context, a *models.Apartment) (string, error) {
	if a.ThumbnailURL == "" {
		return "", fmt.Errorf("apartment %d has no thumbnail url", a.AirbnbID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.ThumbnailURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	hash := sha256.Sum256(data)
	digest := hex.EncodeToString(hash[:])
	ext := guessExtension(a.ThumbnailURL, resp.Header.Get("Content-Type"))
	key := fmt.Sprintf("thumbnails/%s/%s%s", digest[:2], digest, ext)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return key, nil
}

// guessExtension determines file extension from URL or content-type
func guessExtension(rawURL, contentType string) string {
	ext := strings.ToLower(path.Ext(rawURL))
	if i := strings.IndexAny(ext, "?&"); i >= 0 {
		ext = ext[:i]
	}
	if isImageExt(ext) {
		return ext
	}

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// NoOpUploader skips the actual upload; used when no bucket is
// configured.
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(_ context.Context, _ string, data io.Reader, _ string) error {
	_, err := io.Copy(io.Discard, data)
	return err
}
