package notify

import (
	"context"
	"errors"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lingodoc/platform/internal/email"
	"github.com/lingodoc/platform/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &Notification{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	// empty SMTP config: email fan-out fails fast and is swallowed
	return NewService(db, email.SMTPConfig{}, zerolog.Nop())
}

func seedUser(t *testing.T, db *gorm.DB) uint64 {
	t.Helper()
	u := models.User{Email: t.Name() + "@example.com", Username: t.Name()}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

func TestEmit_RecordsRow(t *testing.T) {
	db := openTestDB(t)
	uid := seedUser(t, db)
	svc := newTestService(t, db)

	svc.TranslationCompleted(context.Background(), uid, "job-1", "report.txt", "German", "uploads/report_de.txt")
	svc.CreditsLow(context.Background(), uid, 1)

	rows, total, err := svc.List(context.Background(), uid, false, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("expected 2 notifications, got total=%d len=%d", total, len(rows))
	}
	kinds := map[Kind]bool{}
	for _, n := range rows {
		kinds[n.Kind] = true
		if n.Read {
			t.Fatalf("new notification must be unread: %+v", n)
		}
	}
	if !kinds[KindTranslationCompleted] || !kinds[KindCreditsLow] {
		t.Fatalf("unexpected kinds: %+v", kinds)
	}
}

func TestMarkRead_ScopedToOwner(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db)
	svc := newTestService(t, db)

	svc.TranslationFailed(context.Background(), owner, "job-1", "report.txt", "engine unavailable")
	rows, _, err := svc.List(context.Background(), owner, true, 20, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("list unread: %v %d", err, len(rows))
	}

	// a different user cannot flip someone else's notification
	if err := svc.MarkRead(context.Background(), owner+1, rows[0].ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}

	if err := svc.MarkRead(context.Background(), owner, rows[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, _, err := svc.List(context.Background(), owner, true, 20, 0)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected no unread left, got %d", len(unread))
	}
}

func TestMarkAllRead(t *testing.T) {
	db := openTestDB(t)
	uid := seedUser(t, db)
	svc := newTestService(t, db)

	svc.CreditsAdded(context.Background(), uid, 50, "pro")
	svc.CreditsLow(context.Background(), uid, 2)
	svc.TranslationFailed(context.Background(), uid, "job-1", "a.txt", "boom")

	n, err := svc.MarkAllRead(context.Background(), uid)
	if err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows updated, got %d", n)
	}

	again, err := svc.MarkAllRead(context.Background(), uid)
	if err != nil || again != 0 {
		t.Fatalf("second pass should be a no-op, got n=%d err=%v", again, err)
	}
}
