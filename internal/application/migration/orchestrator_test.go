package migration_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	app "github.com/mohammadpnp/hana-migration/internal/application/migration"
	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
	"github.com/mohammadpnp/hana-migration/internal/infrastructure/archive"
	"github.com/mohammadpnp/hana-migration/internal/infrastructure/file"
)

type harness struct {
	store      *fakeStatusStore
	objects    *fakeObjectStore
	translator *fakeTranslator
	notifier   *fakeNotifier
	workspace  *file.Workspace
	orch       *app.Orchestrator
}

func newHarness(t *testing.T, archiveBytes []byte, concurrency int) *harness {
	t.Helper()
	h := &harness{
		store:      newFakeStatusStore(),
		objects:    &fakeObjectStore{archive: archiveBytes},
		translator: &fakeTranslator{},
		notifier:   &fakeNotifier{},
		workspace:  file.NewWorkspace(t.TempDir()),
	}
	h.orch = app.NewOrchestrator(app.OrchestratorDeps{
		Store:     h.store,
		Objects:   h.objects,
		Notifier:  h.notifier,
		Processor: app.NewArchiveProcessor(h.translator, concurrency, nil),
		Workspace: h.workspace,
		Codec:     archive.Codec{},
		Layout:    domain.NewOutputLayout("out", "converted"),
	})
	return h
}

func (h *harness) run(t *testing.T, ctx context.Context) domain.Status {
	t.Helper()
	job, err := domain.NewJob("abc-123", "s3://in/exports/in.zip")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.LockToken = "run-1"
	if ok, _ := h.store.TryLock(ctx, job.ID, job.LockToken, 0); !ok {
		t.Fatal("lock not acquired")
	}
	if err := h.orch.Accept(ctx, job); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return h.orch.Run(ctx, job)
}

func percentOf(t *testing.T, r domain.StatusRecord) int {
	t.Helper()
	v, err := strconv.Atoi(strings.TrimSuffix(r.Percentage, "%"))
	if err != nil {
		t.Fatalf("bad percentage %q", r.Percentage)
	}
	return v
}

// assertWellFormedHistory checks Started first, a single terminal record last,
// and non-decreasing progress that only reaches 100 at Completed.
func assertWellFormedHistory(t *testing.T, records []domain.StatusRecord) {
	t.Helper()
	if len(records) < 2 {
		t.Fatalf("expected at least Started and a terminal record, got %+v", records)
	}
	if records[0] != domain.StartedRecord() {
		t.Fatalf("first record = %+v, want Started 0%%", records[0])
	}

	last := 0
	for i, r := range records[1 : len(records)-1] {
		if r.Status != domain.StatusInProgress {
			t.Fatalf("record %d = %+v, want In Progress", i+1, r)
		}
		pct := percentOf(t, r)
		if pct < last || pct >= 100 {
			t.Fatalf("record %d percentage %d after %d", i+1, pct, last)
		}
		last = pct
	}

	final := records[len(records)-1]
	if !final.Status.Terminal() {
		t.Fatalf("last record %+v is not terminal", final)
	}
	if final.Status == domain.StatusCompleted && final.Percentage != "100%" {
		t.Fatalf("completed with %s", final.Percentage)
	}
}

func assertWorkspaceClean(t *testing.T, ws *file.Workspace) {
	t.Helper()
	entries, err := os.ReadDir(ws.BaseDir)
	if err != nil {
		t.Fatalf("read workspace root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("workspace not cleaned up: %d entries left", len(entries))
	}
}

func TestOrchestratorConvertsRecognizedEntriesOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t, buildZip(t,
		zipEntry{name: "a.hdbdd", content: "entity a"},
		zipEntry{name: "b.unknownext", content: "ignored"},
	), 1)

	status := h.run(t, context.Background())

	if status != domain.StatusCompleted {
		t.Fatalf("expected Completed, got %s", status)
	}

	records := h.store.records("abc-123")
	assertWellFormedHistory(t, records)
	want := []domain.StatusRecord{domain.StartedRecord(), domain.InProgressRecord(50), domain.CompletedRecord()}
	if fmt.Sprint(records) != fmt.Sprint(want) {
		t.Fatalf("status history = %+v, want %+v", records, want)
	}

	uploaded, ok := h.objects.uploads["s3://out/converted/abc-123.zip"]
	if !ok {
		t.Fatalf("expected upload at converted/abc-123.zip, got %v", h.objects.uploads)
	}
	files := zipNames(t, uploaded)
	if len(files) != 1 || files["a.sql"] != "-- converted\nentity a" {
		t.Fatalf("unexpected output archive %v", files)
	}

	if len(h.objects.markers) != 1 || h.objects.markers[0] != "s3://out/converted/" {
		t.Fatalf("unexpected markers %v", h.objects.markers)
	}
	if len(h.notifier.calls) != 1 || h.notifier.calls[0] != "abc-123 s3://out/converted/abc-123.zip" {
		t.Fatalf("unexpected notifications %v", h.notifier.calls)
	}
	if h.translator.callCount() != 1 {
		t.Fatalf("expected one translation call, got %d", h.translator.callCount())
	}
	if h.store.locks["abc-123"] != "" {
		t.Fatal("lock not released")
	}
	assertWorkspaceClean(t, h.workspace)
}

func TestOrchestratorAuthenticationFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, buildZip(t, zipEntry{name: "v.calculationview", content: "<view/>"}), 1)
	h.notifier.err = fmt.Errorf("%w: no id_token received", domain.ErrAuthentication)

	status := h.run(t, context.Background())

	if status != domain.StatusFailed {
		t.Fatalf("expected Failed, got %s", status)
	}
	records := h.store.records("abc-123")
	assertWellFormedHistory(t, records)
	final := records[len(records)-1]
	if final.Reason != domain.ReasonAuthenticationFailed || final.Percentage != "" {
		t.Fatalf("unexpected final record %+v", final)
	}
}

func TestOrchestratorNotificationFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, buildZip(t, zipEntry{name: "v.xml", content: "<view/>"}), 1)
	h.notifier.err = fmt.Errorf("%w: webhook returned 500", domain.ErrNotificationDelivery)

	status := h.run(t, context.Background())

	records := h.store.records("abc-123")
	if status != domain.StatusFailed || records[len(records)-1].Reason != domain.ReasonNotificationFailed {
		t.Fatalf("expected notification_failed, got %s %+v", status, records)
	}
}

func TestOrchestratorNothingConvertible(t *testing.T) {
	t.Parallel()

	h := newHarness(t, buildZip(t,
		zipEntry{name: "readme.txt", content: "hello"},
		zipEntry{name: "noext", content: "x"},
	), 1)

	status := h.run(t, context.Background())

	if status != domain.StatusFailed {
		t.Fatalf("expected Failed, got %s", status)
	}
	records := h.store.records("abc-123")
	assertWellFormedHistory(t, records)
	if records[len(records)-1].Reason != domain.ReasonNoConvertibleContent {
		t.Fatalf("unexpected reason %+v", records[len(records)-1])
	}
	if len(h.objects.uploads) != 0 || len(h.notifier.calls) != 0 {
		t.Fatalf("expected no upload or notification, got %v %v", h.objects.uploads, h.notifier.calls)
	}
	if h.translator.callCount() != 0 {
		t.Fatalf("unrecognized entries must not be translated")
	}
	assertWorkspaceClean(t, h.workspace)
}

func TestOrchestratorAllTranslationsFail(t *testing.T) {
	t.Parallel()

	h := newHarness(t, buildZip(t, zipEntry{name: "f.hdbscalarfunction", content: "fn"}), 1)
	h.translator.fn = func([]byte) (string, error) {
		return "", fmt.Errorf("%w: missing markers", domain.ErrTranslationParse)
	}

	status := h.run(t, context.Background())

	records := h.store.records("abc-123")
	if status != domain.StatusFailed || records[len(records)-1].Reason != domain.ReasonNoConvertibleContent {
		t.Fatalf("expected no_convertible_content, got %s %+v", status, records)
	}
	if len(h.objects.uploads) != 0 {
		t.Fatal("nothing should be uploaded")
	}
}

func TestOrchestratorSkipsUnparseableEntries(t *testing.T) {
	t.Parallel()

	h := newHarness(t, buildZip(t,
		zipEntry{name: "views/a.xml", content: "a"},
		zipEntry{name: "views/b.xml", content: "b"},
		zipEntry{name: "c.hdbdd", content: "c"},
		zipEntry{name: "d.hdbdd", content: "d"},
	), 1)
	h.translator.view = func(content []byte) (string, error) {
		if string(content) == "b" {
			return "", fmt.Errorf("%w: no braces", domain.ErrTranslationParse)
		}
		return echoSQL(content)
	}

	status := h.run(t, context.Background())

	if status != domain.StatusCompleted {
		t.Fatalf("expected Completed, got %s", status)
	}
	records := h.store.records("abc-123")
	assertWellFormedHistory(t, records)
	want := []string{"0%", "25%", "75%", "99%", "100%"}
	got := make([]string, 0, len(records))
	for _, r := range records {
		got = append(got, r.Percentage)
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("percentages = %v, want %v", got, want)
	}

	files := zipNames(t, h.objects.uploads["s3://out/converted/abc-123.zip"])
	if _, ok := files["views/b.sql"]; ok || len(files) != 3 {
		t.Fatalf("unexpected output archive %v", files)
	}
	if _, ok := files["views/a.sql"]; !ok {
		t.Fatalf("directory structure not preserved: %v", files)
	}
}

func TestOrchestratorDuplicateOutputNameSkipped(t *testing.T) {
	t.Parallel()

	h := newHarness(t, buildZip(t,
		zipEntry{name: "a.xml", content: "view"},
		zipEntry{name: "a.hdbdd", content: "schema"},
	), 1)

	status := h.run(t, context.Background())

	if status != domain.StatusCompleted {
		t.Fatalf("expected Completed, got %s", status)
	}
	files := zipNames(t, h.objects.uploads["s3://out/converted/abc-123.zip"])
	if files["a.sql"] != "-- converted\nview" {
		t.Fatalf("expected first entry to win, got %v", files)
	}
	if h.translator.callCount() != 1 {
		t.Fatalf("duplicate must be skipped before translation, got %d calls", h.translator.callCount())
	}
}

func TestOrchestratorConcurrentTranslationKeepsProgressMonotonic(t *testing.T) {
	t.Parallel()

	entries := make([]zipEntry, 0, 20)
	for i := 0; i < 20; i++ {
		ext := []string{"xml", "hdbdd", "hdbscalarfunction", "txt"}[i%4]
		entries = append(entries, zipEntry{name: fmt.Sprintf("e%02d.%s", i, ext), content: strconv.Itoa(i)})
	}
	h := newHarness(t, buildZip(t, entries...), 4)

	status := h.run(t, context.Background())

	if status != domain.StatusCompleted {
		t.Fatalf("expected Completed, got %s", status)
	}
	assertWellFormedHistory(t, h.store.records("abc-123"))

	files := zipNames(t, h.objects.uploads["s3://out/converted/abc-123.zip"])
	if len(files) != 15 {
		t.Fatalf("expected 15 converted files, got %d", len(files))
	}
}

func TestOrchestratorDownloadFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, 1)
	h.objects.downloadErr = fmt.Errorf("%w: NoSuchKey", domain.ErrObjectNotFound)

	status := h.run(t, context.Background())

	records := h.store.records("abc-123")
	if status != domain.StatusFailed || records[len(records)-1].Reason != domain.ReasonDownloadFailed {
		t.Fatalf("expected download_failed, got %s %+v", status, records)
	}
	assertWorkspaceClean(t, h.workspace)
}

func TestOrchestratorInvalidArchive(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []byte("definitely not a zip"), 1)

	status := h.run(t, context.Background())

	records := h.store.records("abc-123")
	if status != domain.StatusFailed || records[len(records)-1].Reason != domain.ReasonInvalidArchive {
		t.Fatalf("expected invalid_archive, got %s %+v", status, records)
	}
}

func TestOrchestratorUploadFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, buildZip(t, zipEntry{name: "a.hdbdd", content: "a"}), 1)
	h.objects.uploadErr = fmt.Errorf("%w: slow down", domain.ErrObjectStore)

	status := h.run(t, context.Background())

	records := h.store.records("abc-123")
	if status != domain.StatusFailed || records[len(records)-1].Reason != domain.ReasonUploadFailed {
		t.Fatalf("expected upload_failed, got %s %+v", status, records)
	}
	if len(h.notifier.calls) != 0 {
		t.Fatal("notification must not be sent after a failed upload")
	}
}

func TestOrchestratorRecoversFromPanic(t *testing.T) {
	t.Parallel()

	h := newHarness(t, buildZip(t, zipEntry{name: "a.hdbdd", content: "a"}), 1)
	h.notifier.panicMsg = "nil map write"

	status := h.run(t, context.Background())

	if status != domain.StatusFailed {
		t.Fatalf("expected Failed, got %s", status)
	}
	records := h.store.records("abc-123")
	assertWellFormedHistory(t, records)
	if records[len(records)-1].Reason != domain.ReasonInternalError {
		t.Fatalf("unexpected final record %+v", records[len(records)-1])
	}
	if h.store.locks["abc-123"] != "" {
		t.Fatal("lock not released after panic")
	}
	assertWorkspaceClean(t, h.workspace)
}

func TestOrchestratorCancelledContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t, buildZip(t, zipEntry{name: "a.hdbdd", content: "a"}), 1)
	ctx, cancel := context.WithCancel(context.Background())

	job, _ := domain.NewJob("abc-123", "s3://in/in.zip")
	if err := h.orch.Accept(ctx, job); err != nil {
		t.Fatalf("accept: %v", err)
	}
	cancel()

	status := h.orch.Run(ctx, job)

	records := h.store.records("abc-123")
	if status != domain.StatusFailed || records[len(records)-1].Reason != domain.ReasonInternalError {
		t.Fatalf("expected internal_error, got %s %+v", status, records)
	}
}
