package migration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	jujuerrors "github.com/juju/errors"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

const statusWriteTimeout = 10 * time.Second

// Workspace provides a scratch directory per job run.
type Workspace interface {
	Create(jobID string) (string, error)
	CreateFile(dir, name string) (*os.File, error)
	Remove(dir string) error
}

type ArchiveCodec interface {
	ReadFile(path string) ([]domain.ArchiveEntry, error)
	Pack(files []domain.ConvertedFile) ([]byte, error)
}

type OrchestratorDeps struct {
	Store     domain.StatusStore
	Objects   domain.ObjectStore
	Notifier  domain.Notifier
	Processor *ArchiveProcessor
	Workspace Workspace
	Codec     ArchiveCodec
	Layout    domain.OutputLayout
	Recorder  Recorder
}

// Orchestrator drives one job from download to notification and owns every
// status write for it.
type Orchestrator struct {
	store     domain.StatusStore
	objects   domain.ObjectStore
	notifier  domain.Notifier
	processor *ArchiveProcessor
	workspace Workspace
	codec     ArchiveCodec
	layout    domain.OutputLayout
	recorder  Recorder
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		store:     deps.Store,
		objects:   deps.Objects,
		notifier:  deps.Notifier,
		processor: deps.Processor,
		workspace: deps.Workspace,
		codec:     deps.Codec,
		layout:    deps.Layout,
		recorder:  recorderOrNop(deps.Recorder),
	}
}

type jobRun struct {
	job domain.Job

	mu          sync.Mutex
	percentage  int
	terminal    bool
	reason      domain.FailureReason
	finalStatus domain.Status
}

// Accept records the job as Started at 0%.
func (o *Orchestrator) Accept(ctx context.Context, job domain.Job) error {
	if err := o.save(ctx, job.ID, domain.StartedRecord()); err != nil {
		return jujuerrors.Annotatef(err, "accept job %s", job.ID)
	}
	o.recorder.JobAccepted()
	return nil
}

// Run executes the job and returns its terminal status. It never panics and
// releases the job lock before returning.
func (o *Orchestrator) Run(ctx context.Context, job domain.Job) (status domain.Status) {
	started := time.Now()
	run := &jobRun{job: job}
	o.recorder.JobStarted()
	logger.Infof("job %s: started for %s", job.ID, job.Source)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("job %s: panic: %v\n%s", job.ID, r, debug.Stack())
			status = o.fail(ctx, run, domain.ReasonInternalError, fmt.Errorf("panic: %v", r))
		}

		o.recorder.JobFinished(string(status), string(run.reason), time.Since(started))

		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
		defer cancel()
		if err := o.store.Unlock(unlockCtx, job.ID, job.LockToken); err != nil {
			logger.Warningf("job %s: release lock: %v", job.ID, err)
		}
	}()

	return o.execute(ctx, run)
}

func (o *Orchestrator) execute(ctx context.Context, run *jobRun) domain.Status {
	job := run.job
	if err := ctx.Err(); err != nil {
		return o.fail(ctx, run, domain.ReasonInternalError, err)
	}

	dir, err := o.workspace.Create(job.ID)
	if err != nil {
		return o.fail(ctx, run, domain.ReasonInternalError, err)
	}
	defer func() {
		if err := o.workspace.Remove(dir); err != nil {
			logger.Warningf("job %s: %v", job.ID, err)
		}
	}()

	archivePath, err := o.download(ctx, job, dir)
	if err != nil {
		return o.fail(ctx, run, domain.ReasonDownloadFailed, err)
	}

	entries, err := o.codec.ReadFile(archivePath)
	if err != nil {
		return o.fail(ctx, run, domain.ReasonInvalidArchive, err)
	}
	logger.Infof("job %s: %d entries in archive", job.ID, len(entries))

	result, err := o.processor.Process(ctx, entries, func(ctx context.Context, processed, total int) {
		o.progress(ctx, run, processed, total)
	})
	for _, skipped := range result.Skipped() {
		logger.Infof("job %s: %s not converted: %v", job.ID, skipped.Name, skipped.Err)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNoConvertibleContent) {
			return o.fail(ctx, run, domain.ReasonNoConvertibleContent, err)
		}
		return o.fail(ctx, run, domain.ReasonInternalError, err)
	}

	payload, err := o.codec.Pack(result.Converted)
	if err != nil {
		return o.fail(ctx, run, domain.ReasonInternalError, jujuerrors.Annotate(err, "pack output"))
	}

	resultLocation, err := o.upload(ctx, job, payload)
	if err != nil {
		return o.fail(ctx, run, domain.ReasonUploadFailed, err)
	}
	logger.Infof("job %s: uploaded %d files to %s", job.ID, len(result.Converted), resultLocation)

	if err := o.notifier.Notify(ctx, job.ID, resultLocation.String()); err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			return o.fail(ctx, run, domain.ReasonAuthenticationFailed, err)
		}
		return o.fail(ctx, run, domain.ReasonNotificationFailed, err)
	}

	return o.complete(ctx, run)
}

func (o *Orchestrator) download(ctx context.Context, job domain.Job, dir string) (string, error) {
	f, err := o.workspace.CreateFile(dir, job.Source.BaseName())
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := o.objects.Download(ctx, job.Source, f); err != nil {
		return "", jujuerrors.Annotatef(err, "download %s", job.Source)
	}
	if err := f.Sync(); err != nil {
		return "", jujuerrors.Annotatef(err, "flush %s", f.Name())
	}
	return f.Name(), nil
}

func (o *Orchestrator) upload(ctx context.Context, job domain.Job, payload []byte) (domain.ObjectLocation, error) {
	if marker, ok := o.layout.Marker(); ok {
		if err := o.objects.PutMarker(ctx, marker); err != nil {
			return domain.ObjectLocation{}, jujuerrors.Annotate(err, "create output prefix")
		}
	}

	loc := o.layout.Result(job.OutputName())
	if err := o.objects.Upload(ctx, loc, payload); err != nil {
		return domain.ObjectLocation{}, jujuerrors.Annotatef(err, "upload %s", loc)
	}
	return loc, nil
}

// progress writes In Progress unless the percentage would go backwards or a
// terminal status is already stored.
func (o *Orchestrator) progress(ctx context.Context, run *jobRun, processed, total int) {
	pct := domain.ProgressPercentage(processed, total)

	run.mu.Lock()
	defer run.mu.Unlock()
	if run.terminal || pct < run.percentage {
		return
	}
	run.percentage = pct

	if err := o.save(ctx, run.job.ID, domain.InProgressRecord(pct)); err != nil {
		logger.Warningf("job %s: progress %d%% not recorded: %v", run.job.ID, pct, err)
	}
}

func (o *Orchestrator) complete(ctx context.Context, run *jobRun) domain.Status {
	if !o.finish(ctx, run, domain.CompletedRecord(), "") {
		return run.finalStatus
	}
	logger.Infof("job %s: completed", run.job.ID)
	return domain.StatusCompleted
}

func (o *Orchestrator) fail(ctx context.Context, run *jobRun, reason domain.FailureReason, cause error) domain.Status {
	if !o.finish(ctx, run, domain.FailedRecord(reason), reason) {
		return run.finalStatus
	}
	logger.Errorf("job %s: failed (%s): %v", run.job.ID, reason, cause)
	return domain.StatusFailed
}

// finish stores the terminal record once per run. It reports false when a
// terminal record had already been written.
func (o *Orchestrator) finish(ctx context.Context, run *jobRun, record domain.StatusRecord, reason domain.FailureReason) bool {
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.terminal {
		return false
	}
	run.terminal = true
	run.reason = reason
	run.finalStatus = record.Status

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	if err := o.save(writeCtx, run.job.ID, record); err != nil {
		logger.Errorf("job %s: terminal status %s not recorded: %v", run.job.ID, record.Status, err)
	}
	return true
}

func (o *Orchestrator) save(ctx context.Context, jobID string, record domain.StatusRecord) error {
	payload, err := record.Marshal()
	if err != nil {
		return jujuerrors.Trace(err)
	}
	return o.store.Save(ctx, jobID, payload)
}
