package translation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lingodoc/platform/internal/billing"
	"github.com/lingodoc/platform/internal/common"
)

// Collaborator contracts, injected at construction so tests can swap in
// in-memory fakes.

// Queue enqueues job messages with at-least-once delivery.
type Queue interface {
	Enqueue(ctx context.Context, msg JobMessage) error
}

// Ledger is the slice of the billing ledger the job path needs.
type Ledger interface {
	Credits(ctx context.Context, userID uint64) (int64, error)
	SpendCredit(ctx context.Context, userID uint64) (int64, error)
}

// Payments resolves and consumes one-off payments.
type Payments interface {
	FindAvailableOneOff(ctx context.Context, userID uint64, billingReference string) (*billing.Payment, error)
	Consume(ctx context.Context, userID uint64, billingReference, jobID string) error
}

// Notifier is fire-and-forget; implementations never fail the caller.
type Notifier interface {
	TranslationCompleted(ctx context.Context, userID uint64, jobID, filename, targetLang, translatedPath string)
	TranslationFailed(ctx context.Context, userID uint64, jobID, filename, errMsg string)
	CreditsLow(ctx context.Context, userID uint64, remaining int64)
}

// Service is the intake side: it validates requests, resolves billing and
// hands accepted jobs to the queue.
type Service struct {
	repo     *Repo
	queue    Queue
	ledger   Ledger
	payments Payments
	log      zerolog.Logger
}

func NewService(repo *Repo, queue Queue, ledger Ledger, payments Payments, log zerolog.Logger) *Service {
	return &Service{repo: repo, queue: queue, ledger: ledger, payments: payments, log: log}
}

type CreateRequest struct {
	FileID           uint64      `json:"file_id"`
	SourceLang       string      `json:"source_lang"`
	TargetLang       string      `json:"target_lang"`
	Formality        Formality   `json:"formality"`
	BillingMode      BillingMode `json:"billing_mode"`
	BillingReference string      `json:"billing_reference"`
}

// Create validates the request, resolves billing, writes the job row in
// `pending` and enqueues the work item.
func (s *Service) Create(ctx context.Context, userID uint64, req CreateRequest) (*Job, error) {
	if req.TargetLang == "" {
		return nil, ErrTargetLangRequired
	}
	langName, ok := LanguageName(req.TargetLang)
	if !ok {
		return nil, ErrUnsupportedLanguage
	}
	if !req.Formality.Valid() {
		return nil, ErrInvalidFormality
	}

	mode := req.BillingMode
	if mode == "" {
		mode = BillingPlan
	}
	if mode != BillingPlan && mode != BillingOneOff {
		return nil, ErrInvalidBillingMode
	}

	file, err := s.repo.GetFileForUser(ctx, req.FileID, userID)
	if err != nil {
		return nil, err
	}

	// Billing resolution. The plan check is advisory: the credit is spent
	// only on successful completion.
	var payment *billing.Payment
	switch mode {
	case BillingPlan:
		credits, err := s.ledger.Credits(ctx, userID)
		if err != nil {
			return nil, err
		}
		if credits < 1 {
			return nil, billing.ErrInsufficientBalance
		}
	case BillingOneOff:
		if req.BillingReference == "" {
			return nil, ErrBillingReferenceRequired
		}
		payment, err = s.payments.FindAvailableOneOff(ctx, userID, req.BillingReference)
		if err != nil {
			return nil, err
		}
	}

	jobID, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	sourceLang := req.SourceLang
	if sourceLang == "" {
		sourceLang = "auto"
	}

	job := &Job{
		ID:             jobID,
		UserID:         userID,
		FileID:         file.ID,
		Filename:       file.Filename,
		FilePath:       file.Path,
		SourceLang:     sourceLang,
		TargetLang:     req.TargetLang,
		TargetLangName: langName,
		Formality:      req.Formality,
		BillingMode:    mode,
		Status:         JobPending,
	}
	if payment != nil {
		job.PaymentID = &payment.ID
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	// One-off consumption happens after the row exists so the payment can
	// link back to the job. Losing the consume race invalidates the job:
	// it is marked failed and never enqueued.
	if mode == BillingOneOff {
		if err := s.payments.Consume(ctx, userID, req.BillingReference, job.ID); err != nil {
			_ = s.repo.MarkFailed(ctx, job.ID, "one-off payment no longer available")
			return nil, err
		}
	}

	msg := JobMessage{
		JobID:       job.ID,
		UserID:      job.UserID,
		FileID:      job.FileID,
		Filename:    job.Filename,
		FilePath:    job.FilePath,
		SourceLang:  job.SourceLang,
		TargetLang:  job.TargetLang,
		Formality:   job.Formality,
		BillingMode: job.BillingMode,
		PaymentID:   job.PaymentID,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		_ = s.repo.MarkFailed(ctx, job.ID, "enqueue failed")
		return nil, fmt.Errorf("translation: enqueue job %s: %w", job.ID, err)
	}

	s.log.Info().Str("job_id", job.ID).Uint64("user_id", userID).
		Str("target", job.TargetLang).Str("billing", string(mode)).
		Msg("translation job queued")
	return job, nil
}

func (s *Service) Get(ctx context.Context, userID uint64, jobID string) (*Job, error) {
	return s.repo.GetJobForUser(ctx, jobID, userID)
}

func (s *Service) List(ctx context.Context, userID uint64, status JobStatus, limit, offset int) ([]Job, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListJobs(ctx, userID, status, limit, offset)
}

// Cancel is only effective while the job is still pending; once a worker
// has claimed it the persisted status guard rejects the request.
func (s *Service) Cancel(ctx context.Context, userID uint64, jobID string) error {
	if _, err := s.repo.GetJobForUser(ctx, jobID, userID); err != nil {
		return err
	}
	ok, err := s.repo.Cancel(ctx, jobID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotCancellable
	}
	return nil
}

// Retry re-enqueues a failed job. Billing is re-validated because credits
// may have been spent elsewhere since the failure.
func (s *Service) Retry(ctx context.Context, userID uint64, jobID string) (*Job, error) {
	job, err := s.repo.GetJobForUser(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if job.Status != JobFailed {
		return nil, ErrNotRetryable
	}

	switch job.BillingMode {
	case BillingPlan:
		credits, err := s.ledger.Credits(ctx, userID)
		if err != nil {
			return nil, err
		}
		if credits < 1 {
			return nil, billing.ErrInsufficientBalance
		}
	case BillingOneOff:
		if job.PaymentID == nil {
			return nil, billing.ErrPaymentNotFound
		}
	}

	ok, err := s.repo.ResetForRetry(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotRetryable
	}
	job.Status = JobPending
	job.Error = nil

	msg := JobMessage{
		JobID:       job.ID,
		UserID:      job.UserID,
		FileID:      job.FileID,
		Filename:    job.Filename,
		FilePath:    job.FilePath,
		SourceLang:  job.SourceLang,
		TargetLang:  job.TargetLang,
		Formality:   job.Formality,
		BillingMode: job.BillingMode,
		PaymentID:   job.PaymentID,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		_ = s.repo.MarkFailed(ctx, job.ID, "enqueue failed")
		return nil, fmt.Errorf("translation: re-enqueue job %s: %w", job.ID, err)
	}

	s.log.Info().Str("job_id", job.ID).Msg("failed job re-queued")
	return job, nil
}

// IsPreconditionErr reports whether err is a caller-facing billing or
// validation failure rather than a server fault.
func IsPreconditionErr(err error) bool {
	return errors.Is(err, billing.ErrInsufficientBalance) ||
		errors.Is(err, billing.ErrPaymentNotFound) ||
		errors.Is(err, ErrTargetLangRequired) ||
		errors.Is(err, ErrUnsupportedLanguage) ||
		errors.Is(err, ErrInvalidFormality) ||
		errors.Is(err, ErrInvalidBillingMode) ||
		errors.Is(err, ErrBillingReferenceRequired)
}
