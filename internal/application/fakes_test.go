package application

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
	"github.com/ericfisherdev/repobrief/internal/domain/port/driven"
)

// --- Fake implementations for pipeline tests ---

type fakeKeyStore struct {
	valid map[string]bool
	err   error
}

func (f *fakeKeyStore) Validate(_ context.Context, value string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.valid[value], nil
}

func (f *fakeKeyStore) GetByValue(_ context.Context, value string) (*model.APIKey, error) {
	if f.valid[value] {
		return &model.APIKey{ID: 1, Name: "test", Value: value}, nil
	}
	return nil, driven.ErrKeyNotFound
}

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []model.RepoRef
	readme  model.EncodedReadme
	err     error
	blockOn bool // wait for ctx cancellation instead of returning
}

func (f *fakeFetcher) FetchReadme(ctx context.Context, ref model.RepoRef) (model.EncodedReadme, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ref)
	f.mu.Unlock()

	if f.blockOn {
		<-ctx.Done()
		return model.EncodedReadme{}, ctx.Err()
	}
	return f.readme, f.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeGenerator struct {
	mu       sync.Mutex
	requests []driven.GenerationRequest
	reply    string
	err      error
	blockOn  bool
}

func (f *fakeGenerator) Generate(ctx context.Context, req driven.GenerationRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.blockOn {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func (f *fakeGenerator) lastRequest() driven.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// newBufferLogger returns a logger writing text records into the returned buffer.
func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
