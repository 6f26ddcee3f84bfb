package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cleanupghent/cleanup-backend/internal/dto"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/testutil"
	"gorm.io/gorm"
)

func newProfileFixture(t *testing.T) (*ProfileService, *PointsService, *gorm.DB) {
	t.Helper()
	cfg := testutil.Config(t)
	cfg.AdminEmails = "stad@gent.be"
	db := testutil.NewDB(t, cfg)
	points := NewPointsService(db, nil, nil)
	return NewProfileService(db, cfg, points, NewContentFilter()), points, db
}

func strPtr(s string) *string { return &s }

func TestMeHome(t *testing.T) {
	s, points, db := newProfileFixture(t)
	ctx := context.Background()

	citizen := testutil.CreateUser(t, db, "burger@gent.be", models.RoleUser)
	staff := testutil.CreateUser(t, db, "ploeg@gent.be", models.RoleAdmin)
	listed := testutil.CreateUser(t, db, "stad@gent.be", models.RoleUser)
	award(t, points, db, citizen.ID, 30)

	tests := []struct {
		name string
		user *models.User
		home string
	}{
		{"citizen", citizen, dto.HomeUser},
		{"db admin", staff, dto.HomeAdmin},
		{"configured admin email", listed, dto.HomeAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			me, err := s.Me(ctx, tt.user.ID)
			if err != nil {
				t.Fatalf("Me: %v", err)
			}
			if me.Home != tt.home {
				t.Errorf("expected home %q, got %q", tt.home, me.Home)
			}
		})
	}

	me, err := s.Me(ctx, citizen.ID)
	if err != nil {
		t.Fatal(err)
	}
	if me.Balance.TotalPoints != 30 || me.Rank.Rank != 1 {
		t.Errorf("unexpected balance or rank: %+v %+v", me.Balance, me.Rank)
	}
}

func TestUpdateProfile(t *testing.T) {
	s, _, db := newProfileFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "an@gent.be", models.RoleUser)

	updated, err := s.Update(ctx, user.ID, &dto.UpdateProfileRequest{FirstName: strPtr("  An "), LastName: strPtr("De Smet")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.FirstName != "An" || updated.FullName != "An De Smet" {
		t.Errorf("unexpected names: %q %q", updated.FirstName, updated.FullName)
	}

	updated, err = s.Update(ctx, user.ID, &dto.UpdateProfileRequest{LastName: strPtr("Claes")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.FullName != "An Claes" {
		t.Errorf("expected recomputed full name, got %q", updated.FullName)
	}

	_, err = s.Update(ctx, user.ID, &dto.UpdateProfileRequest{FirstName: strPtr(strings.Repeat("a", 101))})
	if !errors.Is(err, ErrNameTooLong) {
		t.Errorf("expected ErrNameTooLong, got %v", err)
	}

	_, err = s.Update(ctx, user.ID, &dto.UpdateProfileRequest{FirstName: strPtr("www.spam.example.com")})
	var rejection *ContentRejection
	if !errors.As(err, &rejection) {
		t.Errorf("expected content rejection, got %v", err)
	}
}

func TestListUsers(t *testing.T) {
	s, points, db := newProfileFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "a@gent.be", models.RoleUser)
	testutil.CreateUser(t, db, "b@gent.be", models.RoleUser)
	award(t, points, db, a.ID, 12)

	users, total, err := s.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(users) != 2 {
		t.Fatalf("expected 2 users, got %d/%d", len(users), total)
	}
	for _, u := range users {
		if u.ID == a.ID && u.LifetimePoints != 12 {
			t.Errorf("expected 12 lifetime points for a, got %d", u.LifetimePoints)
		}
	}
}

func TestUpdateProfileAcceptsAccentedNames(t *testing.T) {
	s, _, db := newProfileFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "zoe@gent.be", models.RoleUser)

	name := strings.Repeat("é", 80)
	updated, err := s.Update(ctx, user.ID, &dto.UpdateProfileRequest{FirstName: strPtr(name)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.FirstName != name {
		t.Errorf("first name not stored: %q", updated.FirstName)
	}

	_, err = s.Update(ctx, user.ID, &dto.UpdateProfileRequest{LastName: strPtr(strings.Repeat("ü", 101))})
	if !errors.Is(err, ErrNameTooLong) {
		t.Errorf("expected ErrNameTooLong, got %v", err)
	}
}

func TestRenameRefreshesLeaderboard(t *testing.T) {
	cfg := testutil.Config(t)
	db := testutil.NewDB(t, cfg)
	cache := &memoryCache{pages: map[int][]dto.LeaderboardEntry{}}
	points := NewPointsService(db, cache, nil)
	s := NewProfileService(db, cfg, points, NewContentFilter())
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "lotte@gent.be", models.RoleUser)
	award(t, points, db, user.ID, 20)
	if _, err := points.Leaderboard(ctx, 50); err != nil {
		t.Fatal(err)
	}
	before := cache.invalidated

	if _, err := s.Update(ctx, user.ID, &dto.UpdateProfileRequest{AvatarURL: strPtr("https://cdn.example.com/a.png")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if cache.invalidated != before {
		t.Errorf("avatar change invalidated the leaderboard")
	}

	if _, err := s.Update(ctx, user.ID, &dto.UpdateProfileRequest{FirstName: strPtr("Lotte")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if cache.invalidated != before+1 {
		t.Fatalf("rename did not invalidate the leaderboard cache")
	}

	board, err := points.Leaderboard(ctx, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(board) != 1 || !strings.HasPrefix(board[0].Name, "Lotte") {
		t.Errorf("leaderboard shows stale name: %+v", board)
	}
}
