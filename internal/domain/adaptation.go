package domain

import "time"

// Goal names the adaptation the user asks for. The set is closed.
type Goal string

const (
	GoalReduceCalories  Goal = "reduce_calories"
	GoalIncreaseProtein Goal = "increase_protein"
	GoalReduceCarbs     Goal = "reduce_carbs"
	GoalReduceFat       Goal = "reduce_fat"
)

// Goals lists every supported goal in a stable order.
var Goals = []Goal{GoalReduceCalories, GoalIncreaseProtein, GoalReduceCarbs, GoalReduceFat}

// Valid reports whether g is one of the supported goals.
func (g Goal) Valid() bool {
	for _, k := range Goals {
		if g == k {
			return true
		}
	}
	return false
}

// AdaptationLog is one quota-counted attempt. A row is written before the
// generator is called, so failed generations still consume quota.
// AcceptedAt is set at most once, when a proposal for this log is committed.
type AdaptationLog struct {
	ID         string     `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string     `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_adapt_user_created,priority:1"`
	RecipeID   string     `json:"recipe_id"   gorm:"type:char(36);not null;index"`
	Goal       Goal       `json:"goal"        gorm:"type:varchar(32);not null"`
	CreatedAt  time.Time  `json:"created_at"  gorm:"not null;index:idx_adapt_user_created,priority:2"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// TableName returns the database table name for AdaptationLog.
func (AdaptationLog) TableName() string { return "adaptation_logs" }

// InFlight marks a (user, recipe) pair with an adaptation currently running.
// The composite primary key makes the insert a cross-process test-and-set.
// Token identifies the holder; only the holder may delete the row.
type InFlight struct {
	UserID    string    `gorm:"type:varchar(64);primaryKey"`
	RecipeID  string    `gorm:"type:char(36);primaryKey"`
	Token     string    `gorm:"type:char(36);not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for InFlight.
func (InFlight) TableName() string { return "adaptation_inflight" }

// QuotaWindow describes the user's current daily allowance. WindowStart and
// WindowEnd are UTC instants of consecutive local midnights in Timezone.
type QuotaWindow struct {
	Limit       int       `json:"limit"`
	Used        int       `json:"used"`
	Remaining   int       `json:"remaining"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Timezone    string    `json:"timezone"`
}

// Exhausted reports whether no attempts remain in the window.
func (q QuotaWindow) Exhausted() bool { return q.Remaining == 0 }

// AdaptationProposal is a generated rewrite awaiting review. It lives in a
// short-lived proposal store and is consumed at most once.
type AdaptationProposal struct {
	LogID              string      `json:"log_id"`
	UserID             string      `json:"user_id"`
	RecipeID           string      `json:"recipe_id"`
	Goal               Goal        `json:"goal"`
	ProposedRecipeText string      `json:"proposed_recipe_text"`
	ProposedMacros     Macros      `json:"proposed_macros"`
	Explanation        string      `json:"explanation"`
	QuotaSnapshot      QuotaWindow `json:"quota"`
	RequestedAt        time.Time   `json:"requested_at"`
	Notes              string      `json:"notes,omitempty"`
}

// OutcomeStatus tags an Outcome.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomePending   OutcomeStatus = "pending"
)

// Outcome is what a propose call produced. Proposal is set only when Status
// is OutcomeCompleted; LogID is always set.
type Outcome struct {
	Status   OutcomeStatus       `json:"status"`
	LogID    string              `json:"log_id"`
	Proposal *AdaptationProposal `json:"proposal,omitempty"`
}
