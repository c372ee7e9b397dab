package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/greencredits/greencredits/internal/app/rewards"
	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/infra/memstore"
)

type testEnv struct {
	svc    *Service
	engine *rewards.Engine
	store  *memstore.Store
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{store: memstore.New(), now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return env.now }

	cfg := rewards.DefaultConfig()
	cfg.Now = clock
	env.engine = rewards.NewEngine(env.store, cfg, nil)
	env.svc = NewService(env.store, env.engine, clock, nil)
	return env
}

var citizen = domain.User{ID: "u1", Name: "Asha", Email: "asha@example.com", Role: domain.RoleCitizen}

func TestSubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lat, lng := 12.97, 77.59

	report, credits, err := env.svc.Submit(ctx, citizen, SubmitInput{
		Description: "  Pile of garbage by the bus stop  ",
		Address:     "Station Road",
		Lat:         &lat,
		Lng:         &lng,
		PhotoURL:    "/uploads/abc.jpg",
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if report.ID == 0 || report.Status != domain.StatusPending {
		t.Errorf("report = %+v", report)
	}
	if report.Description != "Pile of garbage by the bus stop" {
		t.Errorf("Description not trimmed: %q", report.Description)
	}
	if report.ReporterName != "Asha" || report.ReporterEmail != "asha@example.com" {
		t.Errorf("reporter snapshot = %q/%q", report.ReporterName, report.ReporterEmail)
	}
	if credits.Earned != 65 || len(credits.Breakdown) != 4 {
		t.Errorf("credits = %+v", credits)
	}

	mine, _ := env.svc.ListByUser(ctx, "u1")
	if len(mine) != 1 || mine[0].ID != report.ID {
		t.Errorf("ListByUser() = %+v", mine)
	}
}

func TestSubmit_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, _, err := env.svc.Submit(ctx, citizen, SubmitInput{Description: "   "}); !errors.Is(err, domain.ErrMissingFields) {
		t.Errorf("empty Submit() err = %v, want ErrMissingFields", err)
	}

	lat := 12.97
	report, credits, err := env.svc.Submit(ctx, citizen, SubmitInput{Description: "Litter", Lat: &lat})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if report.Lat != nil || report.HasGPS() {
		t.Error("half a coordinate pair should be dropped")
	}
	for _, a := range credits.Breakdown {
		if a.Action == domain.ActionReportWithGPS {
			t.Error("GPS bonus paid without coordinates")
		}
	}
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	report, _, _ := env.svc.Submit(ctx, citizen, SubmitInput{PhotoURL: "/uploads/a.jpg"})

	env.now = env.now.Add(time.Hour)
	updated, res, err := env.svc.UpdateStatus(ctx, report.ID, domain.StatusInProgress, "")
	if err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}
	if updated.Status != domain.StatusInProgress || !updated.UpdatedAt.Equal(env.now) {
		t.Errorf("updated = %+v", updated)
	}
	if res.Award == nil || res.Award.Action != domain.ActionReportVerified {
		t.Errorf("award = %+v, want REPORT_VERIFIED", res.Award)
	}

	updated, res, err = env.svc.UpdateStatus(ctx, report.ID, domain.StatusDisposed, domain.DisposalRecycled)
	if err != nil {
		t.Fatalf("UpdateStatus(Disposed) error: %v", err)
	}
	if updated.DisposalMethod != domain.DisposalRecycled {
		t.Errorf("DisposalMethod = %q", updated.DisposalMethod)
	}
	if res.Award == nil || res.Award.Credits != 25 {
		t.Errorf("award = %+v, want 25", res.Award)
	}

	stored, _ := env.svc.Get(ctx, report.ID)
	if stored.Status != domain.StatusDisposed {
		t.Errorf("stored status = %q", stored.Status)
	}

	// 35 submission + 15 verified + 25 recycled
	acct, _ := env.engine.Account(ctx, "u1")
	if acct.TotalCredits != 75 {
		t.Errorf("TotalCredits = %d, want 75", acct.TotalCredits)
	}
}

func TestUpdateStatus_SameStatusNoAward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	report, _, _ := env.svc.Submit(ctx, citizen, SubmitInput{PhotoURL: "/uploads/a.jpg"})

	_, res, err := env.svc.UpdateStatus(ctx, report.ID, domain.StatusPending, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Award != nil {
		t.Errorf("same-status update paid %+v", res.Award)
	}
}

func TestUpdateStatus_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	report, _, _ := env.svc.Submit(ctx, citizen, SubmitInput{PhotoURL: "/uploads/a.jpg"})

	tests := []struct {
		name     string
		id       int64
		status   domain.ReportStatus
		disposal domain.DisposalMethod
		want     error
	}{
		{"bad status", report.ID, "Archived", "", domain.ErrInvalidStatus},
		{"bad disposal", report.ID, domain.StatusDisposed, "buried", domain.ErrInvalidDisposalMethod},
		{"missing report", 404, domain.StatusResolved, "", domain.ErrReportNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := env.svc.UpdateStatus(ctx, tt.id, tt.status, tt.disposal); !errors.Is(err, tt.want) {
				t.Errorf("UpdateStatus() err = %v, want %v", err, tt.want)
			}
		})
	}

	stored, _ := env.svc.Get(ctx, report.ID)
	if stored.Status != domain.StatusPending {
		t.Errorf("failed updates changed status to %q", stored.Status)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		env.svc.Submit(ctx, citizen, SubmitInput{PhotoURL: "/uploads/a.jpg"})
	}
	env.svc.UpdateStatus(ctx, 1, domain.StatusResolved, "")

	st, err := env.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if st.Total != 3 || st.ByStatus[domain.StatusPending] != 2 || st.ByStatus[domain.StatusResolved] != 1 {
		t.Errorf("Stats() = %+v", st)
	}
	if _, ok := st.ByStatus[domain.StatusDisposed]; !ok {
		t.Error("Stats() should list every status")
	}
}
