package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tommyz7/airbnb-analytics/models"
)

type captureUploader struct {
	key         string
	contentType string
	data        []byte
	err         error
}

func (u *captureUploader) Upload(_ context.Context, key string, data io.Reader, contentType string) error {
	if u.err != nil {
		return u.err
	}
	u.key = key
	u.contentType = contentType
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	u.data = b
	return nil
}

func TestArchive(t *testing.T) {
	image := []byte("\xff\xd8\xff\xe0 not really a jpeg")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(image)
	}))
	defer srv.Close()

	uploader := &captureUploader{}
	worker := NewThumbnailWorker(nil, srv.Client(), uploader, ThumbnailWorkerConfig{})

	a := &models.Apartment{AirbnbID: 100, ThumbnailURL: srv.URL + "/pictures/100/thumb.jpg"}
	key, err := worker.Archive(context.Background(), a)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	hash := sha256.Sum256(image)
	digest := hex.EncodeToString(hash[:])
	want := fmt.Sprintf("thumbnails/%s/%s.jpg", digest[:2], digest)
	if key != want {
		t.Errorf("key = %q, want %q", key, want)
	}
	if uploader.key != key {
		t.Errorf("uploaded under %q", uploader.key)
	}
	if uploader.contentType != "image/jpeg" {
		t.Errorf("content type = %q", uploader.contentType)
	}
	if string(uploader.data) != string(image) {
		t.Error("uploaded bytes differ from downloaded bytes")
	}
}

func TestArchive_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	worker := NewThumbnailWorker(nil, srv.Client(), &captureUploader{}, ThumbnailWorkerConfig{})

	if _, err := worker.Archive(context.Background(), &models.Apartment{AirbnbID: 1}); err == nil {
		t.Error("missing thumbnail url must error")
	}
	a := &models.Apartment{AirbnbID: 2, ThumbnailURL: srv.URL + "/gone.jpg"}
	if _, err := worker.Archive(context.Background(), a); err == nil {
		t.Error("404 download must error")
	}
}

type fakeThumbnailQueue struct {
	apartments []models.Apartment
	keys       map[uuid.UUID]string
}

func (q *fakeThumbnailQueue) GetApartmentsWithoutThumbnailArchive(_ context.Context, limit int) ([]models.Apartment, error) {
	if limit > len(q.apartments) {
		limit = len(q.apartments)
	}
	out := make([]models.Apartment, limit)
	copy(out, q.apartments)
	return out, nil
}

func (q *fakeThumbnailQueue) SetApartmentThumbnailKey(_ context.Context, id uuid.UUID, key string) error {
	if q.keys == nil {
		q.keys = make(map[uuid.UUID]string)
	}
	q.keys[id] = key
	return nil
}

func TestThumbnailBatch_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var downloads int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downloads++
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("image bytes"))
		cancel()
	}))
	defer srv.Close()

	queue := &fakeThumbnailQueue{}
	for i := 0; i < 3; i++ {
		queue.apartments = append(queue.apartments, models.Apartment{
			ID:           uuid.New(),
			AirbnbID:     int64(i + 1),
			ThumbnailURL: fmt.Sprintf("%s/pictures/%d.jpg", srv.URL, i+1),
		})
	}
	worker := NewThumbnailWorker(queue, srv.Client(), &captureUploader{}, ThumbnailWorkerConfig{})

	start := time.Now()
	worker.processBatch(ctx)
	elapsed := time.Since(start)

	if downloads != 1 {
		t.Errorf("downloads = %d, want 1 before cancellation", downloads)
	}
	if len(queue.keys) != 1 {
		t.Errorf("archived keys = %d, want 1", len(queue.keys))
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("batch kept pacing after cancellation: %v", elapsed)
	}
}

func TestGuessExtension(t *testing.T) {
	cases := []struct {
		url         string
		contentType string
		want        string
	}{
		{"https://example.com/a/b.png", "", ".png"},
		{"https://example.com/a/b.jpeg", "image/png", ".jpeg"},
		{"https://example.com/a/b", "image/webp", ".webp"},
		{"https://example.com/a/b.bin", "image/gif", ".gif"},
		{"https://example.com/a/b", "", ".jpg"},
	}
	for _, tc := range cases {
		if got := guessExtension(tc.url, tc.contentType); got != tc.want {
			t.Errorf("guessExtension(%q, %q) = %q, want %q", tc.url, tc.contentType, got, tc.want)
		}
	}
}
