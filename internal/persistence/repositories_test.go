package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence/sqlite"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/testfixtures"
)

var (
	_ persistence.CatalogRepository    = (*sqlite.CatalogRepository)(nil)
	_ persistence.ScheduleRepository   = (*sqlite.ScheduleRepository)(nil)
	_ persistence.AutomationRepository = (*sqlite.AutomationRepository)(nil)
	_ persistence.MessageRepository    = (*sqlite.MessageRepository)(nil)
)

func TestScheduleRepositoryContract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	alpha := testfixtures.NewStudioFixture("alpha")
	beta := testfixtures.NewStudioFixture("beta")
	harness.SeedStudio(t, alpha)
	harness.SeedStudio(t, beta)

	var repo persistence.ScheduleRepository = harness.Schedules
	base := testfixtures.ReferenceTime()
	past := testfixtures.NewSessionFixture(alpha, testfixtures.WithSessionGroup("series-1"), testfixtures.WithSessionWindow(base, time.Hour))
	future := testfixtures.NewSessionFixture(alpha, testfixtures.WithSessionGroup("series-1"), testfixtures.WithSessionWindow(base.Add(7*24*time.Hour), time.Hour))
	harness.AddSessions(t, past, future)

	t.Run("future only selection by recurring group", func(t *testing.T) {
		err := repo.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
			selected, err := tx.SelectSessions(ctx, "alpha", persistence.SessionSelector{
				RecurringGroupID: "series-1",
				FutureOnly:       true,
				Now:              base.Add(time.Hour),
			})
			if err != nil {
				return err
			}
			if len(selected) != 1 || selected[0].ID != future.ID {
				t.Errorf("expected only %s, got %+v", future.ID, selected)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithinTx failed: %v", err)
		}
	})

	t.Run("selection and lookups are tenant scoped", func(t *testing.T) {
		err := repo.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
			selected, err := tx.SelectSessions(ctx, "beta", persistence.SessionSelector{IDs: []string{past.ID, future.ID}})
			if err != nil {
				return err
			}
			if len(selected) != 0 {
				t.Errorf("expected no cross-tenant rows, got %d", len(selected))
			}
			deleted, err := tx.DeleteSessions(ctx, "beta", []string{past.ID})
			if err != nil {
				return err
			}
			if deleted != 0 {
				t.Errorf("expected cross-tenant delete to affect nothing, got %d", deleted)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithinTx failed: %v", err)
		}
		if _, err := repo.GetTeacher(ctx, "beta", alpha.Teacher(1)); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for a foreign teacher, got %v", err)
		}
	})

	t.Run("a returned error rolls the unit of work back", func(t *testing.T) {
		sentinel := errors.New("abort")
		err := repo.WithinTx(ctx, func(tx persistence.ScheduleTx) error {
			if _, err := tx.DeleteSessions(ctx, "alpha", []string{past.ID, future.ID}); err != nil {
				return err
			}
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected sentinel error, got %v", err)
		}
		listed, err := repo.ListSessions(ctx, "alpha", base.Add(-time.Hour), base.Add(30*24*time.Hour))
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if len(listed) != 2 {
			t.Fatalf("expected both sessions to survive the rollback, got %d", len(listed))
		}
	})
}

func TestMessageRepositoryContract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	alpha := testfixtures.NewStudioFixture("alpha")
	beta := testfixtures.NewStudioFixture("beta")
	harness.SeedStudio(t, alpha)
	harness.SeedStudio(t, beta)
	alphaRule := testfixtures.NewAutomationFixture(alpha, "WELCOME")
	betaRule := testfixtures.NewAutomationFixture(beta, "WELCOME")
	harness.AddAutomation(t, alphaRule)
	harness.AddAutomation(t, betaRule)

	var outbox persistence.MessageRepository = harness.Messages
	base := testfixtures.ReferenceTime()
	thread := "automation:welcome:shared"
	message := func(studio testfixtures.StudioFixture, rule persistence.Automation, id string) persistence.Message {
		return persistence.Message{
			ID: id, StudioID: studio.Studio.ID, AutomationID: rule.ID, ClientID: studio.Client.ID,
			ThreadID: thread, Channel: persistence.ChannelEmail, Recipient: studio.Client.Email,
			Subject: "Hello", Body: "Welcome", CreatedAt: base,
		}
	}

	first := message(alpha, alphaRule, "m-1")
	if err := outbox.ClaimMessage(ctx, first); err != nil {
		t.Fatalf("ClaimMessage failed: %v", err)
	}
	if err := outbox.ClaimMessage(ctx, message(alpha, alphaRule, "m-2")); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for the same thread, got %v", err)
	}
	if err := outbox.ClaimMessage(ctx, message(beta, betaRule, "m-3")); err != nil {
		t.Fatalf("expected the same thread to be free under another studio: %v", err)
	}

	if _, err := outbox.ReclaimFailedMessage(ctx, first); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected a QUEUED row to refuse reclaim, got %v", err)
	}

	first.Status = persistence.MessageFailed
	first.FailureReason = "mailbox full"
	first.UpdatedAt = base.Add(time.Minute)
	if err := outbox.CompleteMessage(ctx, first); err != nil {
		t.Fatalf("CompleteMessage failed: %v", err)
	}

	first.Body = "Welcome again"
	reclaimed, err := outbox.ReclaimFailedMessage(ctx, first)
	if err != nil {
		t.Fatalf("ReclaimFailedMessage failed: %v", err)
	}
	if reclaimed.Status != persistence.MessageQueued || reclaimed.Body != "Welcome again" || reclaimed.FailureReason != "" {
		t.Fatalf("unexpected reclaimed row: %+v", reclaimed)
	}

	stored, err := outbox.FindMessage(ctx, "beta", betaRule.ID, thread)
	if err != nil {
		t.Fatalf("FindMessage failed: %v", err)
	}
	if stored.ID != "m-3" || stored.Status != persistence.MessageQueued {
		t.Fatalf("unexpected beta row: %+v", stored)
	}
}
