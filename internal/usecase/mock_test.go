package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/flipconvert/internal/domain/model"
	"github.com/hszk-dev/flipconvert/internal/domain/repository"
	"github.com/hszk-dev/flipconvert/internal/transcoder"
)

var _ transcoder.Transcoder = (*fakeTranscoder)(nil)

// fakeTranscoder is an in-memory transcoder with a private namespace.
// By default Execute copies the input named after -i to the last argument,
// prefixed with "converted:".
type fakeTranscoder struct {
	mu    sync.Mutex
	files map[string][]byte
	calls []string
	args  [][]string

	writeErr   error
	executeErr error
	readErr    error
	deleteErrs map[string]error
	executeFn  func(ctx context.Context, args []string) error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeTranscoder() *fakeTranscoder {
	return &fakeTranscoder{
		files:      make(map[string][]byte),
		deleteErrs: make(map[string]error),
	}
}

func (f *fakeTranscoder) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeTranscoder) WriteResource(ctx context.Context, name string, data []byte) error {
	f.record("write:" + name)
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = append([]byte(nil), data...)
	return nil
}

func (f *fakeTranscoder) Execute(ctx context.Context, args []string) error {
	f.record("execute")

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.args = append(f.args, append([]string(nil), args...))
	f.mu.Unlock()

	if f.executeFn != nil {
		if err := f.executeFn(ctx, args); err != nil {
			return err
		}
	}
	if f.executeErr != nil {
		return f.executeErr
	}

	var input string
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-i" {
			input = args[i+1]
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[input]
	if !ok {
		return errors.New("input not staged")
	}
	f.files[args[len(args)-1]] = append([]byte("converted:"), data...)
	return nil
}

func (f *fakeTranscoder) ReadResource(ctx context.Context, name string) ([]byte, error) {
	f.record("read:" + name)
	if f.readErr != nil {
		return nil, f.readErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		return nil, transcoder.ErrResourceNotFound
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeTranscoder) DeleteResource(ctx context.Context, name string) error {
	f.record("delete:" + name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErrs[name]; err != nil {
		return err
	}
	delete(f.files, name)
	return nil
}

// Calls returns a snapshot of the recorded calls.
func (f *fakeTranscoder) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Files returns the names currently staged.
func (f *fakeTranscoder) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	return names
}

func (f *fakeTranscoder) countCalls(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// mockRunner provides a configurable mock for Runner.
type mockRunner struct {
	runFn func(ctx context.Context, req *model.ConversionRequest) (*model.ConversionResult, error)
}

func (m *mockRunner) Run(ctx context.Context, req *model.ConversionRequest) (*model.ConversionResult, error) {
	if m.runFn != nil {
		return m.runFn(ctx, req)
	}
	return &model.ConversionResult{
		Data:       []byte("converted"),
		MimeType:   req.OutputMimeType(),
		OutputName: req.OutputName(),
	}, nil
}

// mockArtifactStorage provides a configurable mock for ArtifactStorage.
type mockArtifactStorage struct {
	putFn         func(ctx context.Context, artifact *model.Artifact, body io.Reader) error
	downloadURLFn func(ctx context.Context, artifact *model.Artifact, expiry time.Duration) (string, error)
	deleteFn      func(ctx context.Context, key string) error
	existsFn      func(ctx context.Context, key string) (bool, error)
}

func (m *mockArtifactStorage) Put(ctx context.Context, artifact *model.Artifact, body io.Reader) error {
	if m.putFn != nil {
		return m.putFn(ctx, artifact, body)
	}
	return nil
}

func (m *mockArtifactStorage) DownloadURL(ctx context.Context, artifact *model.Artifact, expiry time.Duration) (string, error) {
	if m.downloadURLFn != nil {
		return m.downloadURLFn(ctx, artifact, expiry)
	}
	return "http://localhost:9000/artifacts/" + artifact.StorageKey, nil
}

func (m *mockArtifactStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockArtifactStorage) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return true, nil
}

// mockArtifactCache is an in-memory ArtifactCache with optional overrides.
type mockArtifactCache struct {
	mu       sync.RWMutex
	data     map[uuid.UUID]*model.Artifact
	getFn    func(ctx context.Context, artifactID uuid.UUID) (*model.Artifact, error)
	setFn    func(ctx context.Context, artifact *model.Artifact, ttl time.Duration) error
	deleteFn func(ctx context.Context, artifactID uuid.UUID) error
	getCount atomic.Int32
}

func newMockArtifactCache() *mockArtifactCache {
	return &mockArtifactCache{
		data: make(map[uuid.UUID]*model.Artifact),
	}
}

func (m *mockArtifactCache) Get(ctx context.Context, artifactID uuid.UUID) (*model.Artifact, error) {
	m.getCount.Add(1)
	if m.getFn != nil {
		return m.getFn(ctx, artifactID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[artifactID], nil
}

func (m *mockArtifactCache) Set(ctx context.Context, artifact *model.Artifact, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, artifact, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[artifact.ID] = artifact
	return nil
}

func (m *mockArtifactCache) Delete(ctx context.Context, artifactID uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, artifactID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, artifactID)
	return nil
}

// mockEventPublisher records published events.
type mockEventPublisher struct {
	mu        sync.Mutex
	events    []repository.ConversionEvent
	publishFn func(ctx context.Context, event repository.ConversionEvent) error
}

func (m *mockEventPublisher) PublishConversionEvent(ctx context.Context, event repository.ConversionEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, event)
	}
	return nil
}

func (m *mockEventPublisher) Close() error {
	return nil
}

func (m *mockEventPublisher) Events() []repository.ConversionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.ConversionEvent(nil), m.events...)
}
