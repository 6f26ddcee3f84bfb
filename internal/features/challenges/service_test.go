package challenges

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/catalog"
	"github.com/cleanupghent/cleanup-backend/internal/features/events"
	"github.com/cleanupghent/cleanup-backend/internal/features/reports"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/services"
	"github.com/cleanupghent/cleanup-backend/internal/testutil"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var testDefs = []catalog.ChallengeDef{
	{Slug: "morning", Title: "Morning", Type: TypeDaily, Metric: MetricReportsSubmitted, GoalTarget: 2, Points: 150, BeforeHour: 12},
	{Slug: "first", Title: "First", Type: TypeOneTime, Metric: MetricReportsSubmitted, GoalTarget: 1, Points: 100},
	{Slug: "verified-week", Title: "Verified", Type: TypeWeekly, Metric: MetricReportsVerified, GoalTarget: 1, Points: 50},
	{Slug: "old-season", Title: "Old", Type: TypeSeasonal, Metric: MetricDistinctLocations, GoalTarget: 1, Points: 10,
		StartsAt: "2025-09-01T00:00:00Z", EndsAt: "2025-12-01T00:00:00Z"},
}

type fixture struct {
	svc    *Service
	db     *gorm.DB
	points *services.PointsService
	loc    *time.Location
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg,
		&reports.TrashReport{},
		&events.Event{}, &events.EventParticipant{},
		&Challenge{}, &UserChallenge{},
	)
	points := services.NewPointsService(db, nil, nil)
	svc := NewService(db, cfg, points, nil)
	if !now.IsZero() {
		svc.now = func() time.Time { return now }
	}
	if err := svc.SeedDefinitions(context.Background(), testDefs); err != nil {
		t.Fatalf("SeedDefinitions: %v", err)
	}
	return &fixture{svc: svc, db: db, points: points, loc: cfg.Location()}
}

func (f *fixture) addReport(t *testing.T, userID uuid.UUID, createdAt time.Time) {
	t.Helper()
	r := &reports.TrashReport{
		UserID:    userID,
		Image:     "http://localhost/uploads/x.jpg",
		MediaType: reports.MediaImage,
		Status:    reports.StatusPending,
		CreatedAt: createdAt.UTC(),
	}
	if err := f.db.Create(r).Error; err != nil {
		t.Fatal(err)
	}
}

func bySlug(rows []UserChallenge) map[string]UserChallenge {
	out := make(map[string]UserChallenge, len(rows))
	for _, r := range rows {
		out[r.Challenge.Slug] = r
	}
	return out
}

func TestSyncComputesProgress(t *testing.T) {
	brussels, _ := time.LoadLocation("Europe/Brussels")
	now := time.Date(2026, 10, 15, 13, 0, 0, 0, brussels)
	f := newFixture(t, now)
	user := testutil.CreateUser(t, f.db, "jan@gent.be", models.RoleUser)

	f.addReport(t, user.ID, time.Date(2026, 10, 15, 7, 0, 0, 0, brussels))
	f.addReport(t, user.ID, time.Date(2026, 10, 15, 9, 30, 0, 0, brussels))
	f.addReport(t, user.ID, time.Date(2026, 10, 15, 12, 30, 0, 0, brussels))
	f.addReport(t, user.ID, time.Date(2026, 10, 14, 8, 0, 0, 0, brussels))

	rows, err := f.svc.Sync(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	got := bySlug(rows)
	if len(got) != 3 {
		t.Fatalf("rows = %d, want 3 (seasonal challenge has ended)", len(got))
	}

	morning := got["morning"]
	if morning.Progress != 2 || morning.Status != StatusCompleted || morning.PeriodKey != "2026-10-15" {
		t.Errorf("morning = progress %d, status %s, period %s", morning.Progress, morning.Status, morning.PeriodKey)
	}
	if first := got["first"]; first.Progress != 4 || first.Status != StatusCompleted {
		t.Errorf("first = progress %d, status %s", first.Progress, first.Status)
	}
	if week := got["verified-week"]; week.Progress != 0 || week.Status != StatusInProgress || week.PeriodKey != "2026-W42" {
		t.Errorf("verified-week = progress %d, status %s, period %s", week.Progress, week.Status, week.PeriodKey)
	}

	again, err := f.svc.Sync(context.Background(), user.ID)
	if err != nil {
		t.Fatal(err)
	}
	var count int64
	f.db.Model(&UserChallenge{}).Where("user_id = ?", user.ID).Count(&count)
	if len(again) != 3 || count != 3 {
		t.Errorf("second sync returned %d rows, table has %d, want 3", len(again), count)
	}
}

func TestClaimIsExactlyOnce(t *testing.T) {
	brussels, _ := time.LoadLocation("Europe/Brussels")
	now := time.Date(2026, 10, 15, 11, 0, 0, 0, brussels)
	f := newFixture(t, now)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "an@gent.be", models.RoleUser)
	other := testutil.CreateUser(t, f.db, "piet@gent.be", models.RoleUser)

	f.addReport(t, user.ID, now.Add(-2*time.Hour))
	f.addReport(t, user.ID, now.Add(-time.Hour))

	rows, err := f.svc.Sync(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	got := bySlug(rows)
	morning, week := got["morning"], got["verified-week"]

	if _, err := f.svc.Claim(ctx, other.ID, morning.ID); !errors.Is(err, ErrChallengeNotFound) {
		t.Errorf("claim by other user err = %v, want ErrChallengeNotFound", err)
	}
	if _, err := f.svc.Claim(ctx, user.ID, week.ID); !errors.Is(err, ErrNotClaimable) {
		t.Errorf("claim in progress err = %v, want ErrNotClaimable", err)
	}

	resp, err := f.svc.Claim(ctx, user.ID, morning.ID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if resp.PointsAwarded != 150 || resp.Balance != 150 || resp.Challenge.Status != StatusClaimed {
		t.Errorf("claim response = %+v", resp)
	}
	if _, err := f.svc.Claim(ctx, user.ID, morning.ID); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("second claim err = %v, want ErrAlreadyClaimed", err)
	}

	f.addReport(t, user.ID, now.Add(-30*time.Minute))
	rows, err = f.svc.Sync(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if m := bySlug(rows)["morning"]; m.Status != StatusClaimed || m.Progress != 2 {
		t.Errorf("claimed row changed: status %s, progress %d", m.Status, m.Progress)
	}

	bal, err := f.points.Balance(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bal.TotalPoints != 150 {
		t.Errorf("balance = %d, want 150", bal.TotalPoints)
	}
	var ledger int64
	f.db.Model(&models.PointTransaction{}).Where("user_id = ? AND reason = ?", user.ID, services.ReasonChallenge).Count(&ledger)
	if ledger != 1 {
		t.Errorf("challenge ledger rows = %d, want 1", ledger)
	}
}

func TestPointsEarnedIgnoresChallengeRewards(t *testing.T) {
	f := newFixture(t, time.Time{})
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "lies@gent.be", models.RoleUser)

	defs := append([]catalog.ChallengeDef{}, testDefs...)
	defs = append(defs, catalog.ChallengeDef{Slug: "earner", Title: "Earner", Type: TypeWeekly, Metric: MetricPointsEarned, GoalTarget: 20, Points: 5})
	if err := f.svc.SeedDefinitions(ctx, defs); err != nil {
		t.Fatal(err)
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if _, err := f.points.Award(ctx, tx, user.ID, 15, services.ReasonReportVerified, "report", uuid.NewString()); err != nil {
			return err
		}
		_, err := f.points.Award(ctx, tx, user.ID, 100, services.ReasonChallenge, "challenge", uuid.NewString())
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	rows, err := f.svc.Sync(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	earner := bySlug(rows)["earner"]
	if earner.Progress != 15 || earner.Status != StatusInProgress {
		t.Errorf("earner = progress %d, status %s", earner.Progress, earner.Status)
	}
}

func TestSeedDeactivatesRemovedSlugs(t *testing.T) {
	f := newFixture(t, time.Time{})
	ctx := context.Background()

	if err := f.svc.SeedDefinitions(ctx, testDefs[:1]); err != nil {
		t.Fatal(err)
	}
	all, err := f.svc.ListDefinitions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(testDefs) {
		t.Fatalf("definitions = %d, want %d", len(all), len(testDefs))
	}
	for _, c := range all {
		if c.Active != (c.Slug == "morning") {
			t.Errorf("%s active = %v", c.Slug, c.Active)
		}
	}

	bad := []catalog.ChallengeDef{{Slug: "x", Type: "monthly", Metric: MetricReportsSubmitted, GoalTarget: 1}}
	if err := f.svc.SeedDefinitions(ctx, bad); err == nil {
		t.Error("expected unknown type to be rejected")
	}
}

func (f *fixture) addVerifiedReport(t *testing.T, userID uuid.UUID, place string, at time.Time) {
	t.Helper()
	reviewed := at.UTC()
	r := &reports.TrashReport{
		UserID:       userID,
		Image:        "http://localhost/uploads/x.jpg",
		MediaType:    reports.MediaImage,
		LocationName: &place,
		Status:       reports.StatusVerified,
		ReviewedAt:   &reviewed,
		CreatedAt:    at.UTC(),
	}
	if err := f.db.Create(r).Error; err != nil {
		t.Fatal(err)
	}
}

func TestNewSeasonOpensFreshRow(t *testing.T) {
	f := newFixture(t, time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "els@gent.be", models.RoleUser)

	park := catalog.ChallengeDef{Slug: "park", Title: "Park", Type: TypeSeasonal, Metric: MetricDistinctLocations,
		GoalTarget: 1, Points: 300, StartsAt: "2025-09-01T00:00:00Z", EndsAt: "2025-12-01T00:00:00Z"}
	if err := f.svc.SeedDefinitions(ctx, []catalog.ChallengeDef{park}); err != nil {
		t.Fatal(err)
	}
	f.addVerifiedReport(t, user.ID, "Citadelpark", time.Date(2025, 9, 20, 10, 0, 0, 0, time.UTC))

	rows, err := f.svc.Sync(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	first := bySlug(rows)["park"]
	if first.PeriodKey != "season:2025-09-01" || first.Status != StatusCompleted {
		t.Fatalf("first season = key %s, status %s", first.PeriodKey, first.Status)
	}
	if _, err := f.svc.Claim(ctx, user.ID, first.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	park.StartsAt, park.EndsAt = "2026-09-01T00:00:00Z", "2026-12-01T00:00:00Z"
	if err := f.svc.SeedDefinitions(ctx, []catalog.ChallengeDef{park}); err != nil {
		t.Fatal(err)
	}
	f.svc.now = func() time.Time { return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC) }

	rows, err = f.svc.Sync(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	second := bySlug(rows)["park"]
	if second.PeriodKey != "season:2026-09-01" || second.Status != StatusInProgress || second.Progress != 0 {
		t.Errorf("second season before reporting = key %s, status %s, progress %d", second.PeriodKey, second.Status, second.Progress)
	}

	f.addVerifiedReport(t, user.ID, "Blaarmeersen", time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC))
	rows, err = f.svc.Sync(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	second = bySlug(rows)["park"]
	if second.Status != StatusCompleted || second.Progress != 1 {
		t.Errorf("second season = status %s, progress %d", second.Status, second.Progress)
	}
	if _, err := f.svc.Claim(ctx, user.ID, second.ID); err != nil {
		t.Errorf("claim second season: %v", err)
	}
}

func TestRejectedReportsDoNotCount(t *testing.T) {
	brussels, _ := time.LoadLocation("Europe/Brussels")
	now := time.Date(2026, 10, 15, 11, 0, 0, 0, brussels)
	f := newFixture(t, now)
	user := testutil.CreateUser(t, f.db, "joris@gent.be", models.RoleUser)

	f.addReport(t, user.ID, now.Add(-2*time.Hour))
	f.addReport(t, user.ID, now.Add(-time.Hour))
	if err := f.db.Model(&reports.TrashReport{}).Where("user_id = ?", user.ID).
		Update("status", reports.StatusRejected).Error; err != nil {
		t.Fatal(err)
	}

	rows, err := f.svc.Sync(context.Background(), user.ID)
	if err != nil {
		t.Fatal(err)
	}
	got := bySlug(rows)
	if m := got["morning"]; m.Progress != 0 || m.Status != StatusInProgress {
		t.Errorf("morning = progress %d, status %s", m.Progress, m.Status)
	}
	if first := got["first"]; first.Progress != 0 {
		t.Errorf("first = progress %d, want 0", first.Progress)
	}
}
