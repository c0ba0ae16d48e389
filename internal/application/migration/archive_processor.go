package migration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/juju/loggo"
	"golang.org/x/sync/errgroup"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

var logger = loggo.GetLogger("hanamigration.migration")

// ProgressFunc is called after each converted entry with that entry's
// one-based position in the archive. With concurrent translation calls may
// arrive out of order; callers keep the highest value seen.
type ProgressFunc func(ctx context.Context, processed, total int)

type ProcessResult struct {
	Converted []domain.ConvertedFile
	// Results has one element per input entry, in archive order.
	Results []domain.EntryResult
}

func (r ProcessResult) Skipped() []domain.EntryResult {
	var out []domain.EntryResult
	for _, res := range r.Results {
		if !res.Succeeded() {
			out = append(out, res)
		}
	}
	return out
}

type ArchiveProcessor struct {
	translator  domain.Translator
	concurrency int
	recorder    Recorder
}

func NewArchiveProcessor(translator domain.Translator, concurrency int, recorder Recorder) *ArchiveProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ArchiveProcessor{
		translator:  translator,
		concurrency: concurrency,
		recorder:    recorderOrNop(recorder),
	}
}

// Process translates every recognized entry. Translation failures drop the
// entry and processing continues; only cancellation of ctx aborts. When no
// entry converts, the partial result is returned with ErrNoConvertibleContent.
func (p *ArchiveProcessor) Process(ctx context.Context, entries []domain.ArchiveEntry, onProgress ProgressFunc) (ProcessResult, error) {
	total := len(entries)
	results := p.plan(entries)
	sqls := make([]string, total)

	var mu sync.Mutex
	advance := func(ctx context.Context, i int, converted bool) {
		p.recorder.EntryProcessed(string(results[i].Kind), converted)
		if !converted || onProgress == nil {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		onProgress(ctx, i+1, total)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i := range entries {
		if gctx.Err() != nil {
			break
		}
		if results[i].Err != nil {
			logger.Infof("skipping %s: %v", results[i].Name, results[i].Err)
			advance(gctx, i, false)
			continue
		}

		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("translating %s panicked: %v", entries[i].Name, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}

			sql, err := p.translate(gctx, entries[i], results[i].Kind)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				results[i].Err = err
				logger.Warningf("translation of %s failed: %v", entries[i].Name, err)
				advance(gctx, i, false)
				return nil
			}
			sqls[i] = sql
			advance(gctx, i, true)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return ProcessResult{Results: results}, err
	}
	if err := ctx.Err(); err != nil {
		return ProcessResult{Results: results}, err
	}

	result := ProcessResult{Results: results}
	for i, res := range results {
		if res.Succeeded() {
			result.Converted = append(result.Converted, domain.ConvertedFile{Name: res.OutputName, SQL: sqls[i]})
		}
	}
	if len(result.Converted) == 0 {
		return result, fmt.Errorf("%w: none of %d entries converted", domain.ErrNoConvertibleContent, total)
	}
	return result, nil
}

// plan classifies entries and rejects unrecognized kinds and output name
// collisions before any translation call.
func (p *ArchiveProcessor) plan(entries []domain.ArchiveEntry) []domain.EntryResult {
	results := make([]domain.EntryResult, len(entries))
	producedBy := make(map[string]string, len(entries))

	for i, entry := range entries {
		kind := entry.Kind
		if kind == "" {
			kind = domain.KindFromName(entry.Name)
		}
		res := domain.EntryResult{
			Name:       entry.Name,
			OutputName: domain.SQLOutputName(entry.Name),
			Kind:       kind,
		}

		switch {
		case kind == domain.KindUnrecognized:
			res.Err = ErrUnrecognizedExtension
		case producedBy[res.OutputName] != "":
			res.Err = fmt.Errorf("%w: %s already produced by %s", ErrDuplicateOutputName, res.OutputName, producedBy[res.OutputName])
		default:
			producedBy[res.OutputName] = entry.Name
		}
		results[i] = res
	}
	return results
}

func (p *ArchiveProcessor) translate(ctx context.Context, entry domain.ArchiveEntry, kind domain.ArtifactKind) (string, error) {
	var (
		sql string
		err error
	)
	switch kind {
	case domain.KindView:
		sql, err = p.translator.TranslateView(ctx, entry.Content)
	case domain.KindSchema:
		sql, err = p.translator.TranslateSchema(ctx, entry.Content)
	case domain.KindFunction:
		sql, err = p.translator.TranslateFunction(ctx, entry.Content)
	default:
		return "", ErrUnrecognizedExtension
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sql) == "" {
		return "", fmt.Errorf("%w: empty sql", domain.ErrTranslationParse)
	}
	return sql, nil
}
