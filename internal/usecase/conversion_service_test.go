package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hszk-dev/flipconvert/internal/domain/model"
	"github.com/hszk-dev/flipconvert/internal/domain/repository"
)

func newTestConversionService(
	runner Runner,
	storage *mockArtifactStorage,
	artifacts *mockArtifactCache,
	events repository.EventPublisher,
) ConversionService {
	return NewConversionService(runner, storage, artifacts, events, DefaultConversionServiceConfig())
}

func TestDefaultConversionServiceConfig(t *testing.T) {
	cfg := DefaultConversionServiceConfig()

	if cfg.ArtifactTTL != 15*time.Minute {
		t.Errorf("ArtifactTTL = %v, want %v", cfg.ArtifactTTL, 15*time.Minute)
	}
	if cfg.DownloadURLExpiry != 15*time.Minute {
		t.Errorf("DownloadURLExpiry = %v, want %v", cfg.DownloadURLExpiry, 15*time.Minute)
	}
}

func TestConversionService_Targets(t *testing.T) {
	svc := newTestConversionService(&mockRunner{}, &mockArtifactStorage{}, newMockArtifactCache(), nil)

	opts := svc.Targets("photo.png", "image/png")
	if opts.Category != model.CategoryImage {
		t.Errorf("Category = %v, want %v", opts.Category, model.CategoryImage)
	}
	if opts.Default == "" || opts.Default == "png" {
		t.Errorf("Default = %q, want a target other than the source", opts.Default)
	}
}

func TestConversionService_Convert(t *testing.T) {
	var (
		uploadedKey  string
		uploadedBody string
		uploadedSize int64
		uploadedType string
		presignName  string
	)

	storage := &mockArtifactStorage{
		putFn: func(ctx context.Context, artifact *model.Artifact, body io.Reader) error {
			data, _ := io.ReadAll(body)
			uploadedKey, uploadedBody = artifact.StorageKey, string(data)
			uploadedSize, uploadedType = artifact.Size, artifact.MimeType
			return nil
		},
		downloadURLFn: func(ctx context.Context, artifact *model.Artifact, expiry time.Duration) (string, error) {
			presignName = artifact.OutputName
			return "http://localhost:9000/artifacts/" + artifact.StorageKey + "?sig=abc", nil
		},
	}
	artifacts := newMockArtifactCache()
	events := &mockEventPublisher{}

	pool, err := NewConverterPool(NewConverter(newFakeTranscoder()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := newTestConversionService(pool, storage, artifacts, events)

	out, err := svc.Convert(context.Background(), ConvertInput{
		FileName:     "photo.png",
		MimeType:     "image/png",
		TargetFormat: "GIF",
		Data:         []byte("pixels"),
	})
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}

	a := out.Artifact
	if a.OutputName != "photo.gif" || a.MimeType != "image/gif" {
		t.Errorf("artifact = %s (%s), want photo.gif (image/gif)", a.OutputName, a.MimeType)
	}
	if a.Size != int64(len("converted:pixels")) {
		t.Errorf("Size = %d, want %d", a.Size, len("converted:pixels"))
	}
	if uploadedKey != a.StorageKey || !strings.HasSuffix(uploadedKey, "/photo.gif") {
		t.Errorf("uploaded key = %q, artifact key = %q", uploadedKey, a.StorageKey)
	}
	if uploadedBody != "converted:pixels" || uploadedSize != a.Size || uploadedType != "image/gif" {
		t.Errorf("upload = %q (%d, %s)", uploadedBody, uploadedSize, uploadedType)
	}
	if presignName != "photo.gif" {
		t.Errorf("download name = %q, want photo.gif", presignName)
	}
	if !strings.Contains(out.DownloadURL, a.StorageKey) {
		t.Errorf("DownloadURL = %q, want link to %q", out.DownloadURL, a.StorageKey)
	}

	if cached, _ := artifacts.Get(context.Background(), a.ID); cached == nil {
		t.Error("artifact should be cached")
	}

	got := events.Events()
	if len(got) != 1 {
		t.Fatalf("events = %d, want 1", len(got))
	}
	if got[0].Type != repository.EventConversionSucceeded || got[0].ArtifactID != a.ID {
		t.Errorf("event = %+v, want succeeded for %s", got[0], a.ID)
	}
	if got[0].SourceFormat != "png" || got[0].TargetFormat != "gif" {
		t.Errorf("event formats = %s -> %s, want png -> gif", got[0].SourceFormat, got[0].TargetFormat)
	}
}

func TestConversionService_Convert_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     ConvertInput
		runner    *mockRunner
		storage   *mockArtifactStorage
		wantErr   error
		wantEvent repository.EventType
	}{
		{
			name:      "invalid request",
			input:     ConvertInput{FileName: "noextension", TargetFormat: "gif"},
			wantErr:   model.ErrInvalidRequest,
			wantEvent: repository.EventConversionRejected,
		},
		{
			name:  "unsupported conversion",
			input: ConvertInput{FileName: "song.wav", TargetFormat: "png", Data: []byte("x")},
			runner: &mockRunner{
				runFn: func(ctx context.Context, req *model.ConversionRequest) (*model.ConversionResult, error) {
					return nil, &model.UnsupportedConversionError{From: "wav", To: "png"}
				},
			},
			wantErr:   model.ErrUnsupportedConversion,
			wantEvent: repository.EventConversionRejected,
		},
		{
			name:  "transcode failure",
			input: ConvertInput{FileName: "clip.mov", TargetFormat: "mp4", Data: []byte("x")},
			runner: &mockRunner{
				runFn: func(ctx context.Context, req *model.ConversionRequest) (*model.ConversionResult, error) {
					return nil, &model.TranscodeExecutionError{Stage: model.StageExecute, Cause: errors.New("exit status 1")}
				},
			},
			wantErr:   model.ErrTranscodeExecution,
			wantEvent: repository.EventConversionFailed,
		},
		{
			name:  "upload failure",
			input: ConvertInput{FileName: "photo.png", TargetFormat: "jpg", Data: []byte("x")},
			storage: &mockArtifactStorage{
				putFn: func(ctx context.Context, artifact *model.Artifact, body io.Reader) error {
					return errors.New("bucket unavailable")
				},
			},
			wantEvent: repository.EventConversionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := tt.runner
			if runner == nil {
				runner = &mockRunner{}
			}
			storage := tt.storage
			if storage == nil {
				storage = &mockArtifactStorage{}
			}
			events := &mockEventPublisher{}
			svc := newTestConversionService(runner, storage, newMockArtifactCache(), events)

			out, err := svc.Convert(context.Background(), tt.input)
			if err == nil {
				t.Fatalf("Convert() = %+v, want error", out)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}

			got := events.Events()
			if len(got) != 1 || got[0].Type != tt.wantEvent {
				t.Fatalf("events = %+v, want one %s event", got, tt.wantEvent)
			}
			if got[0].Error == "" {
				t.Error("event should carry the error message")
			}
		})
	}
}

func TestConversionService_Convert_PresignFailureRemovesObject(t *testing.T) {
	var deletedKey string
	storage := &mockArtifactStorage{
		downloadURLFn: func(ctx context.Context, artifact *model.Artifact, expiry time.Duration) (string, error) {
			return "", errors.New("signing error")
		},
		deleteFn: func(ctx context.Context, key string) error {
			deletedKey = key
			return nil
		},
	}
	artifacts := newMockArtifactCache()
	svc := newTestConversionService(&mockRunner{}, storage, artifacts, nil)

	_, err := svc.Convert(context.Background(), ConvertInput{
		FileName: "photo.png", TargetFormat: "gif", Data: []byte("x"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasSuffix(deletedKey, "/photo.gif") {
		t.Errorf("deleted key = %q, want uploaded artifact removed", deletedKey)
	}
	if len(artifacts.data) != 0 {
		t.Error("unpublished artifact should not be cached")
	}
}

func TestConversionService_Convert_BestEffortSideEffects(t *testing.T) {
	artifacts := newMockArtifactCache()
	artifacts.setFn = func(ctx context.Context, artifact *model.Artifact, ttl time.Duration) error {
		return errors.New("redis down")
	}
	events := &mockEventPublisher{
		publishFn: func(ctx context.Context, event repository.ConversionEvent) error {
			return errors.New("broker down")
		},
	}
	svc := newTestConversionService(&mockRunner{}, &mockArtifactStorage{}, artifacts, events)

	out, err := svc.Convert(context.Background(), ConvertInput{
		FileName: "song.wav", TargetFormat: "flac", Data: []byte("x"),
	})
	if err != nil {
		t.Fatalf("Convert() error = %v, want cache and broker failures ignored", err)
	}
	if out.DownloadURL == "" {
		t.Error("DownloadURL should be set")
	}
}

func TestConversionService_Convert_URLExpiryCappedByTTL(t *testing.T) {
	var gotExpiry time.Duration
	storage := &mockArtifactStorage{
		downloadURLFn: func(ctx context.Context, artifact *model.Artifact, expiry time.Duration) (string, error) {
			gotExpiry = expiry
			return "http://localhost:9000/" + artifact.StorageKey, nil
		},
	}
	svc := NewConversionService(&mockRunner{}, storage, newMockArtifactCache(), nil, ConversionServiceConfig{
		ArtifactTTL:       time.Minute,
		DownloadURLExpiry: time.Hour,
	})

	if _, err := svc.Convert(context.Background(), ConvertInput{
		FileName: "photo.png", TargetFormat: "gif", Data: []byte("x"),
	}); err != nil {
		t.Fatalf("Convert() error: %v", err)
	}

	if gotExpiry > time.Minute || gotExpiry < 50*time.Second {
		t.Errorf("URL expiry = %v, want about the artifact TTL", gotExpiry)
	}
}

func TestConversionService_GetArtifact(t *testing.T) {
	now := time.Now()
	live := &model.Artifact{
		ID:         uuid.New(),
		OutputName: "clip.mp4",
		MimeType:   "video/mp4",
		StorageKey: "artifacts/live/clip.mp4",
		CreatedAt:  now,
		ExpiresAt:  now.Add(10 * time.Minute),
	}
	expired := &model.Artifact{
		ID:         uuid.New(),
		OutputName: "old.mp4",
		StorageKey: "artifacts/old/old.mp4",
		CreatedAt:  now.Add(-time.Hour),
		ExpiresAt:  now.Add(-time.Minute),
	}
	orphan := &model.Artifact{
		ID:         uuid.New(),
		OutputName: "gone.mp4",
		StorageKey: "artifacts/gone/gone.mp4",
		CreatedAt:  now,
		ExpiresAt:  now.Add(10 * time.Minute),
	}

	tests := []struct {
		name    string
		id      uuid.UUID
		cacheFn func(ctx context.Context, id uuid.UUID) (*model.Artifact, error)
		wantErr error
	}{
		{name: "live artifact", id: live.ID},
		{name: "unknown artifact", id: uuid.New(), wantErr: repository.ErrArtifactNotFound},
		{name: "expired artifact", id: expired.ID, wantErr: repository.ErrArtifactNotFound},
		{name: "object removed from storage", id: orphan.ID, wantErr: repository.ErrArtifactNotFound},
		{
			name: "cache error",
			id:   live.ID,
			cacheFn: func(ctx context.Context, id uuid.UUID) (*model.Artifact, error) {
				return nil, errors.New("redis down")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifacts := newMockArtifactCache()
			for _, a := range []*model.Artifact{live, expired, orphan} {
				artifacts.data[a.ID] = a
			}
			artifacts.getFn = tt.cacheFn

			storage := &mockArtifactStorage{
				existsFn: func(ctx context.Context, key string) (bool, error) {
					return key != orphan.StorageKey, nil
				},
			}
			svc := newTestConversionService(&mockRunner{}, storage, artifacts, nil)

			out, err := svc.GetArtifact(context.Background(), tt.id)

			if tt.cacheFn != nil {
				if err == nil || errors.Is(err, repository.ErrArtifactNotFound) {
					t.Errorf("error = %v, want cache failure surfaced", err)
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetArtifact() error: %v", err)
			}
			if out.Artifact.ID != live.ID || out.DownloadURL == "" {
				t.Errorf("output = %+v, want live artifact with URL", out)
			}
		})
	}
}

func TestConversionService_GetArtifact_EvictsOrphan(t *testing.T) {
	a := &model.Artifact{
		ID:         uuid.New(),
		OutputName: "gone.png",
		StorageKey: "artifacts/gone/gone.png",
		ExpiresAt:  time.Now().Add(time.Minute),
	}
	artifacts := newMockArtifactCache()
	artifacts.data[a.ID] = a
	storage := &mockArtifactStorage{
		existsFn: func(ctx context.Context, key string) (bool, error) { return false, nil },
	}
	svc := newTestConversionService(&mockRunner{}, storage, artifacts, nil)

	if _, err := svc.GetArtifact(context.Background(), a.ID); !errors.Is(err, repository.ErrArtifactNotFound) {
		t.Fatalf("error = %v, want ErrArtifactNotFound", err)
	}
	if _, ok := artifacts.data[a.ID]; ok {
		t.Error("orphaned artifact should be evicted from the cache")
	}
}

func TestConversionService_GetArtifact_Singleflight(t *testing.T) {
	a := &model.Artifact{
		ID:         uuid.New(),
		OutputName: "photo.gif",
		StorageKey: "artifacts/x/photo.gif",
		ExpiresAt:  time.Now().Add(time.Minute),
	}

	release := make(chan struct{})
	artifacts := newMockArtifactCache()
	artifacts.getFn = func(ctx context.Context, id uuid.UUID) (*model.Artifact, error) {
		<-release
		return a, nil
	}
	svc := newTestConversionService(&mockRunner{}, &mockArtifactStorage{}, artifacts, nil)

	const callers = 10
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.GetArtifact(context.Background(), a.ID); err != nil {
				t.Errorf("GetArtifact() error: %v", err)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := artifacts.getCount.Load(); n >= callers {
		t.Errorf("cache lookups = %d, want concurrent callers coalesced", n)
	}
}
