package translation

import (
	"context"
	"fmt"
	"mime"
	"path"

	"github.com/rs/zerolog"

	"github.com/lingodoc/platform/internal/storage"
	"github.com/lingodoc/platform/internal/translator"
)

// Warn the owner when a spend leaves this many credits or fewer.
const lowCreditThreshold = 2

// Processor executes the job state machine on the worker side. Every
// mutation is keyed and guarded, so re-executing a redelivered message is
// safe: the same output is re-uploaded and the same status re-set.
type Processor struct {
	repo     *Repo
	ledger   Ledger
	store    storage.Store
	engine   translator.Engine
	notifier Notifier
	log      zerolog.Logger
}

func NewProcessor(repo *Repo, ledger Ledger, store storage.Store, engine translator.Engine, notifier Notifier, log zerolog.Logger) *Processor {
	return &Processor{repo: repo, ledger: ledger, store: store, engine: engine, notifier: notifier, log: log}
}

// Execute runs one delivery. A returned error tells the queue to count
// the attempt and redeliver; nil acknowledges the message.
func (p *Processor) Execute(ctx context.Context, msg JobMessage) error {
	job, err := p.repo.GetJobByID(ctx, msg.JobID)
	if err != nil {
		// a message without a job row is unrecoverable; don't retry
		p.log.Error().Str("job_id", msg.JobID).Err(err).Msg("job row missing, dropping message")
		return nil
	}

	switch job.Status {
	case JobCompleted:
		// crash after completion but before ack; nothing left to do
		return nil
	case JobCancelled:
		p.log.Info().Str("job_id", job.ID).Msg("job cancelled before processing, skipping")
		return nil
	}

	claimed, err := p.repo.MarkProcessing(ctx, job.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// lost a race with a cancel; persisted status wins
		return nil
	}

	translatedPath, err := p.run(ctx, job)
	if err != nil {
		if markErr := p.repo.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			p.log.Error().Str("job_id", job.ID).Err(markErr).Msg("failed to record job failure")
		}
		p.notifier.TranslationFailed(ctx, job.UserID, job.ID, job.Filename, err.Error())
		return err
	}

	// Credit spend is gated on plan billing: one-off jobs never touch the
	// balance. A floor miss here means the credit verified at intake was
	// spent elsewhere meanwhile; the job still completes.
	if job.BillingMode == BillingPlan {
		remaining, err := p.ledger.SpendCredit(ctx, job.UserID)
		if err != nil {
			p.log.Warn().Str("job_id", job.ID).Uint64("user_id", job.UserID).Err(err).
				Msg("credit spend failed on completed job")
		} else if remaining <= lowCreditThreshold {
			p.notifier.CreditsLow(ctx, job.UserID, remaining)
		}
	}

	p.notifier.TranslationCompleted(ctx, job.UserID, job.ID, job.Filename, job.TargetLangName, translatedPath)
	p.log.Info().Str("job_id", job.ID).Str("output", translatedPath).Msg("translation completed")
	return nil
}

// run does the I/O sequence: fetch, translate, store, mark completed. The
// output upload precedes the status update so a job is never observed
// completed without its artifact durably stored.
func (p *Processor) run(ctx context.Context, job *Job) (string, error) {
	content, err := p.store.Fetch(ctx, job.FilePath)
	if err != nil {
		return "", fmt.Errorf("download source: %w", err)
	}

	var translated []byte
	if isDocument(job.Filename) {
		out, err := p.engine.TranslateDocument(ctx, content, job.Filename, job.SourceLang, job.TargetLang, string(job.Formality))
		if err != nil {
			return "", fmt.Errorf("translate document: %w", err)
		}
		translated = out
	} else {
		out, err := p.engine.TranslateText(ctx, string(content), job.SourceLang, job.TargetLang)
		if err != nil {
			return "", fmt.Errorf("translate text: %w", err)
		}
		translated = []byte(out)
	}

	translatedPath := DerivedPath(job.FilePath, job.TargetLang)
	if err := p.store.Store(ctx, translatedPath, translated, contentTypeFor(job.Filename)); err != nil {
		return "", fmt.Errorf("upload result: %w", err)
	}

	if err := p.repo.MarkCompleted(ctx, job.ID, translatedPath); err != nil {
		return "", fmt.Errorf("record completion: %w", err)
	}
	return translatedPath, nil
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(path.Ext(filename)); ct != "" {
		return ct
	}
	return "text/plain"
}
