package translation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lingodoc/platform/internal/billing"
	"github.com/lingodoc/platform/internal/common"
)

type memStore struct {
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	_ = ctx
	b, ok := m.objects[path]
	if !ok {
		return nil, errors.New("object not found: " + path)
	}
	return b, nil
}

func (m *memStore) Store(ctx context.Context, path string, data []byte, contentType string) error {
	_, _ = ctx, contentType
	m.objects[path] = data
	return nil
}

func (m *memStore) Remove(ctx context.Context, path string) error {
	_ = ctx
	delete(m.objects, path)
	return nil
}

type fakeEngine struct {
	textCalls int
	docCalls  int
	formality string
	fail      bool
}

func (e *fakeEngine) TranslateText(ctx context.Context, content, sourceLang, targetLang string) (string, error) {
	_ = ctx
	e.textCalls++
	if e.fail {
		return "", errors.New("engine unavailable")
	}
	return "[" + targetLang + "] " + content, nil
}

func (e *fakeEngine) TranslateDocument(ctx context.Context, data []byte, filename, sourceLang, targetLang, formality string) ([]byte, error) {
	_ = ctx
	e.docCalls++
	e.formality = formality
	if e.fail {
		return nil, errors.New("engine unavailable")
	}
	return append([]byte(targetLang+":"), data...), nil
}

type notifyEvent struct {
	kind   string
	userID uint64
	jobID  string
	detail string
}

type fakeNotifier struct {
	events []notifyEvent
}

func (n *fakeNotifier) TranslationCompleted(ctx context.Context, userID uint64, jobID, filename, targetLang, translatedPath string) {
	_ = ctx
	n.events = append(n.events, notifyEvent{kind: "completed", userID: userID, jobID: jobID, detail: translatedPath})
}

func (n *fakeNotifier) TranslationFailed(ctx context.Context, userID uint64, jobID, filename, errMsg string) {
	_ = ctx
	n.events = append(n.events, notifyEvent{kind: "failed", userID: userID, jobID: jobID, detail: errMsg})
}

func (n *fakeNotifier) CreditsLow(ctx context.Context, userID uint64, remaining int64) {
	_ = ctx
	n.events = append(n.events, notifyEvent{kind: "credits_low", userID: userID})
}

type procEnv struct {
	db       *gorm.DB
	store    *memStore
	engine   *fakeEngine
	notifier *fakeNotifier
	proc     *Processor
	ledger   *billing.Ledger
}

func newProcEnv(t *testing.T, db *gorm.DB) *procEnv {
	t.Helper()
	env := &procEnv{
		db:       db,
		store:    newMemStore(),
		engine:   &fakeEngine{},
		notifier: &fakeNotifier{},
		ledger:   billing.NewLedger(db, zerolog.Nop()),
	}
	env.proc = NewProcessor(NewRepo(db), env.ledger, env.store, env.engine, env.notifier, zerolog.Nop())
	return env
}

func seedJob(t *testing.T, db *gorm.DB, userID uint64, filename string, mode BillingMode) *Job {
	t.Helper()
	id, err := common.NewULID()
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	job := &Job{
		ID:          id,
		UserID:      userID,
		FileID:      1,
		Filename:    filename,
		FilePath:    "uploads/" + filename,
		SourceLang:  "auto",
		TargetLang:  "de",
		BillingMode: mode,
		Status:      JobPending,
	}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func msgFor(job *Job) JobMessage {
	return JobMessage{
		JobID:       job.ID,
		UserID:      job.UserID,
		Filename:    job.Filename,
		FilePath:    job.FilePath,
		SourceLang:  job.SourceLang,
		TargetLang:  job.TargetLang,
		Formality:   job.Formality,
		BillingMode: job.BillingMode,
	}
}

func TestExecute_PlanJobCompletesAndSpendsOneCredit(t *testing.T) {
	db := openTestDB(t)
	uid := seedUser(t, db, 5)
	env := newProcEnv(t, db)
	job := seedJob(t, db, uid, "notes.txt", BillingPlan)
	env.store.objects[job.FilePath] = []byte("hello")

	if err := env.proc.Execute(context.Background(), msgFor(job)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got, err := NewRepo(db).GetJobByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if got.Status != JobCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.CompletedAt == nil || got.TranslatedPath == nil {
		t.Fatalf("completion fields not set: %+v", got)
	}
	if *got.TranslatedPath != "uploads/notes_de.txt" {
		t.Fatalf("unexpected output path %q", *got.TranslatedPath)
	}
	if string(env.store.objects["uploads/notes_de.txt"]) != "[de] hello" {
		t.Fatalf("translated content not stored")
	}

	balance, _ := env.ledger.Credits(context.Background(), uid)
	if balance != 4 {
		t.Fatalf("plan completion must spend exactly 1 credit, balance = %d", balance)
	}
	if len(env.notifier.events) != 1 || env.notifier.events[0].kind != "completed" {
		t.Fatalf("expected completion notification, got %+v", env.notifier.events)
	}
}

func TestExecute_OneOffLeavesBalanceUnchanged(t *testing.T) {
	db := openTestDB(t)
	uid := seedUser(t, db, 3)
	env := newProcEnv(t, db)
	job := seedJob(t, db, uid, "notes.txt", BillingOneOff)
	env.store.objects[job.FilePath] = []byte("hi")

	if err := env.proc.Execute(context.Background(), msgFor(job)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	balance, _ := env.ledger.Credits(context.Background(), uid)
	if balance != 3 {
		t.Fatalf("one-off completion must not touch the balance, got %d", balance)
	}
}

func TestExecute_FailureMarksJobAndPropagates(t *testing.T) {
	db := openTestDB(t)
	uid := seedUser(t, db, 2)
	env := newProcEnv(t, db)
	env.engine.fail = true
	job := seedJob(t, db, uid, "notes.txt", BillingPlan)
	env.store.objects[job.FilePath] = []byte("hello")

	err := env.proc.Execute(context.Background(), msgFor(job))
	if err == nil {
		t.Fatalf("expected error so the queue counts the attempt")
	}

	got, _ := NewRepo(db).GetJobByID(context.Background(), job.ID)
	if got.Status != JobFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Error == nil || !strings.Contains(*got.Error, "engine unavailable") {
		t.Fatalf("error message not recorded: %+v", got.Error)
	}

	balance, _ := env.ledger.Credits(context.Background(), uid)
	if balance != 2 {
		t.Fatalf("failed job must consume no credit, balance = %d", balance)
	}
	if len(env.notifier.events) != 1 || env.notifier.events[0].kind != "failed" {
		t.Fatalf("expected failure notification, got %+v", env.notifier.events)
	}
}

func TestExecute_RedeliveryRetriesFailedJob(t *testing.T) {
	db := openTestDB(t)
	uid := seedUser(t, db, 5)
	env := newProcEnv(t, db)
	env.engine.fail = true
	job := seedJob(t, db, uid, "notes.txt", BillingPlan)
	env.store.objects[job.FilePath] = []byte("hello")

	// transient blip: the first attempt fails and the error propagates
	// so the queue schedules a retry delivery
	if err := env.proc.Execute(context.Background(), msgFor(job)); err == nil {
		t.Fatalf("first attempt should fail")
	}
	got, _ := NewRepo(db).GetJobByID(context.Background(), job.ID)
	if got.Status != JobFailed {
		t.Fatalf("expected failed after first attempt, got %s", got.Status)
	}

	env.engine.fail = false
	if err := env.proc.Execute(context.Background(), msgFor(job)); err != nil {
		t.Fatalf("retry delivery: %v", err)
	}

	got, _ = NewRepo(db).GetJobByID(context.Background(), job.ID)
	if got.Status != JobCompleted {
		t.Fatalf("retry delivery must re-run the job, got %s", got.Status)
	}
	if got.Error != nil {
		t.Fatalf("completion must clear the recorded error: %q", *got.Error)
	}
	if env.engine.textCalls != 2 {
		t.Fatalf("engine should run once per attempt, got %d calls", env.engine.textCalls)
	}

	balance, _ := env.ledger.Credits(context.Background(), uid)
	if balance != 4 {
		t.Fatalf("exactly one credit spent across attempts, balance = %d", balance)
	}
}

func TestExecute_SkipsCancelledJob(t *testing.T) {
	db := openTestDB(t)
	uid := seedUser(t, db, 2)
	env := newProcEnv(t, db)
	job := seedJob(t, db, uid, "notes.txt", BillingPlan)
	if err := db.Model(&Job{}).Where("id = ?", job.ID).Update("status", JobCancelled).Error; err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if err := env.proc.Execute(context.Background(), msgFor(job)); err != nil {
		t.Fatalf("cancelled delivery must ack cleanly: %v", err)
	}
	if env.engine.textCalls != 0 {
		t.Fatalf("engine must not be called for a cancelled job")
	}
	got, _ := NewRepo(db).GetJobByID(context.Background(), job.ID)
	if got.Status != JobCancelled {
		t.Fatalf("cancelled is terminal, got %s", got.Status)
	}
}

func TestExecute_RedeliveryOfCompletedJobIsNoOp(t *testing.T) {
	db := openTestDB(t)
	uid := seedUser(t, db, 5)
	env := newProcEnv(t, db)
	job := seedJob(t, db, uid, "notes.txt", BillingPlan)
	env.store.objects[job.FilePath] = []byte("hello")

	if err := env.proc.Execute(context.Background(), msgFor(job)); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	// crash-before-ack: the same message arrives again
	if err := env.proc.Execute(context.Background(), msgFor(job)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	balance, _ := env.ledger.Credits(context.Background(), uid)
	if balance != 4 {
		t.Fatalf("redelivery must not double-spend, balance = %d", balance)
	}
	if env.engine.textCalls != 1 {
		t.Fatalf("engine re-invoked on completed job: %d calls", env.engine.textCalls)
	}
}

func TestExecute_DocumentFormatsUseDocumentEndpoint(t *testing.T) {
	db := openTestDB(t)
	uid := seedUser(t, db, 5)
	env := newProcEnv(t, db)
	job := seedJob(t, db, uid, "contract.pdf", BillingPlan)
	job.Formality = FormalityMore
	if err := db.Save(job).Error; err != nil {
		t.Fatalf("save formality: %v", err)
	}
	env.store.objects[job.FilePath] = []byte("pdfdata")

	if err := env.proc.Execute(context.Background(), msgFor(job)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if env.engine.docCalls != 1 || env.engine.textCalls != 0 {
		t.Fatalf("expected document path, got doc=%d text=%d", env.engine.docCalls, env.engine.textCalls)
	}
	if env.engine.formality != "more" {
		t.Fatalf("formality not passed through: %q", env.engine.formality)
	}
}

func TestExecute_LowBalanceTriggersWarning(t *testing.T) {
	db := openTestDB(t)
	uid := seedUser(t, db, 3)
	env := newProcEnv(t, db)
	job := seedJob(t, db, uid, "notes.txt", BillingPlan)
	env.store.objects[job.FilePath] = []byte("hello")

	if err := env.proc.Execute(context.Background(), msgFor(job)); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var sawLow bool
	for _, ev := range env.notifier.events {
		if ev.kind == "credits_low" {
			sawLow = true
		}
	}
	if !sawLow {
		t.Fatalf("expected credits_low notification at balance 2, got %+v", env.notifier.events)
	}
}

func TestEndToEnd_PlanBalanceExhaustion(t *testing.T) {
	db := openTestDB(t)
	uid := seedUser(t, db, 1)
	file := seedFile(t, db, uid, "notes.txt")
	svc, q := newService(t, db)
	env := newProcEnv(t, db)
	env.store.objects[file.Path] = []byte("hello")

	job, err := svc.Create(context.Background(), uid, CreateRequest{FileID: file.ID, TargetLang: "de"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.proc.Execute(context.Background(), q.msgs[0]); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got, _ := svc.Get(context.Background(), uid, job.ID)
	if got.Status != JobCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if balance, _ := env.ledger.Credits(context.Background(), uid); balance != 0 {
		t.Fatalf("expected exhausted balance, got %d", balance)
	}

	// the next plan job must be rejected at intake
	if _, err := svc.Create(context.Background(), uid, CreateRequest{FileID: file.ID, TargetLang: "fr"}); !errors.Is(err, billing.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}
