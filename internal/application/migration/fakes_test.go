package migration_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

type fakeStatusStore struct {
	mu       sync.Mutex
	raw      map[string][]byte
	history  map[string][]domain.StatusRecord
	locks    map[string]string
	saveErr  error
	lockErr  error
	unlocked []string
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{
		raw:     map[string][]byte{},
		history: map[string][]domain.StatusRecord{},
		locks:   map[string]string{},
	}
}

func (f *fakeStatusStore) Save(ctx context.Context, jobID string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	var record domain.StatusRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return err
	}
	f.raw[jobID] = append([]byte(nil), payload...)
	f.history[jobID] = append(f.history[jobID], record)
	return nil
}

func (f *fakeStatusStore) Load(ctx context.Context, jobID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.raw[jobID]
	if !ok {
		return nil, domain.ErrStatusNotFound
	}
	return raw, nil
}

func (f *fakeStatusStore) TryLock(ctx context.Context, jobID, token string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return false, f.lockErr
	}
	if f.locks[jobID] != "" {
		return false, nil
	}
	f.locks[jobID] = token
	return true, nil
}

func (f *fakeStatusStore) Unlock(ctx context.Context, jobID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[jobID] == token {
		delete(f.locks, jobID)
	}
	f.unlocked = append(f.unlocked, jobID)
	return nil
}

func (f *fakeStatusStore) records(jobID string) []domain.StatusRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.StatusRecord(nil), f.history[jobID]...)
}

type fakeObjectStore struct {
	mu          sync.Mutex
	archive     []byte
	downloadErr error
	uploadErr   error
	markerErr   error
	uploads     map[string][]byte
	markers     []string
}

func (f *fakeObjectStore) Download(ctx context.Context, loc domain.ObjectLocation, dst io.Writer) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}
	_, err := dst.Write(f.archive)
	return err
}

func (f *fakeObjectStore) Upload(ctx context.Context, loc domain.ObjectLocation, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	f.uploads[loc.String()] = body
	return nil
}

func (f *fakeObjectStore) PutMarker(ctx context.Context, loc domain.ObjectLocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markerErr != nil {
		return f.markerErr
	}
	f.markers = append(f.markers, loc.String())
	return nil
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls int
	view  func(content []byte) (string, error)
	sch   func(content []byte) (string, error)
	fn    func(content []byte) (string, error)
}

func echoSQL(content []byte) (string, error) {
	return "-- converted\n" + string(content), nil
}

func (f *fakeTranslator) call(impl func([]byte) (string, error), content []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if impl == nil {
		return echoSQL(content)
	}
	return impl(content)
}

func (f *fakeTranslator) TranslateView(ctx context.Context, content []byte) (string, error) {
	return f.call(f.view, content)
}

func (f *fakeTranslator) TranslateSchema(ctx context.Context, content []byte) (string, error) {
	return f.call(f.sch, content)
}

func (f *fakeTranslator) TranslateFunction(ctx context.Context, content []byte) (string, error) {
	return f.call(f.fn, content)
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	panicMsg string
	calls    []string
}

func (f *fakeNotifier) Notify(ctx context.Context, jobID, resultLocation string) error {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, jobID+" "+resultLocation)
	return f.err
}

type zipEntry struct {
	name    string
	content string
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(e.content)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func zipNames(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = string(body)
	}
	return out
}

var errBoom = errors.New("boom")
