package challenges

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TypeDaily    = "daily"
	TypeWeekly   = "weekly"
	TypeSeasonal = "seasonal"
	TypeOneTime  = "one_time"

	MetricReportsSubmitted  = "reports_submitted"
	MetricReportsVerified   = "reports_verified"
	MetricPointsEarned      = "points_earned"
	MetricDistinctLocations = "distinct_locations"
	MetricEventsAttended    = "events_attended"

	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusClaimed    = "claimed"
)

// Challenge is a definition seeded from the catalog by slug.
type Challenge struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Slug        string     `gorm:"size:100;not null;uniqueIndex" json:"slug"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"size:1000" json:"description"`
	Type        string     `gorm:"size:20;not null" json:"type"`
	Metric      string     `gorm:"size:50;not null" json:"metric"`
	GoalTarget  int        `gorm:"not null" json:"goal_target"`
	Points      int        `gorm:"not null" json:"points"`
	BeforeHour  int        `gorm:"not null;default:0" json:"before_hour,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Active      bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (c *Challenge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Challenge) TableName() string {
	return "challenges"
}

// UserChallenge is a user's progress on one challenge for one period.
// Claimed rows are final.
type UserChallenge struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_challenge_period,priority:1" json:"user_id"`
	ChallengeID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_challenge_period,priority:2" json:"challenge_id"`
	PeriodKey   string     `gorm:"size:20;not null;uniqueIndex:idx_user_challenge_period,priority:3" json:"period_key"`
	Progress    int        `gorm:"not null;default:0" json:"progress"`
	GoalTarget  int        `gorm:"not null" json:"goal_target"`
	Status      string     `gorm:"size:20;not null;default:'in_progress'" json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Challenge Challenge `gorm:"foreignKey:ChallengeID" json:"challenge"`
}

func (uc *UserChallenge) BeforeCreate(tx *gorm.DB) error {
	if uc.ID == uuid.Nil {
		uc.ID = uuid.New()
	}
	return nil
}

func (UserChallenge) TableName() string {
	return "user_challenges"
}

type ClaimResponse struct {
	Challenge     UserChallenge `json:"challenge"`
	PointsAwarded int           `json:"points_awarded"`
	Balance       int           `json:"balance"`
}
