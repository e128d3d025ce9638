package models

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Operation is the concrete arithmetic operation assigned to a cell. The
// mixed level resolves to one of these at generation time; "mixed" itself is
// never stored on a cell.
type Operation string

const (
	OpAdd Operation = "+"
	OpSub Operation = "-"
	OpMul Operation = "*"
)

type SessionState string

const (
	StateInitializing SessionState = "initializing"
	StateInProgress   SessionState = "in_progress"
	StateFinalizing   SessionState = "finalizing"
	StateComplete     SessionState = "complete"
)

// Question is one grid cell in row-major order: the operand pair is looked
// up through Row/Col against the session's operand sequences.
type Question struct {
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	Operation Operation `json:"operation"`
}

// PlaySession is the state of one play-through. It is created when a level
// is opened, mutated by answer edits, and becomes terminal exactly once via
// an explicit finish. A retry always gets a fresh PlaySession.
type PlaySession struct {
	ID             string       `json:"id"`
	PlayerID       string       `json:"playerId"`
	Level          int          `json:"level"`
	CellCount      int          `json:"cellCount"`
	Rows           int          `json:"rows"`
	Cols           int          `json:"cols"`
	RowValues      []int        `json:"rowValues"`
	ColValues      []int        `json:"colValues"`
	Questions      []Question   `json:"questions"`
	Answers        []*int       `json:"answers"`
	State          SessionState `json:"state"`
	StartTime      time.Time    `json:"startTime"`
	CorrectCount   int          `json:"correctCount"`
	Mistakes       int          `json:"mistakes"`
	ElapsedSeconds int          `json:"elapsedSeconds"`
	NewRecord      bool         `json:"newRecord"`
	Celebration    string       `json:"celebration"`
	Saved          bool         `json:"saved"`
	LastAccessTime time.Time    `json:"lastAccessTime"`
}

// Result is the immutable record appended once per completed session.
type Result struct {
	ID          int64     `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Level       int       `json:"level" db:"level"`
	CellCount   int       `json:"cell_count" db:"cell_count"`
	Score       int       `json:"score" db:"score"`
	TimeSeconds int       `json:"time_seconds" db:"time_seconds"`
	Mistakes    int       `json:"mistakes" db:"mistakes"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Profile is the registered identity of a player. Play without a profile is
// allowed but never persisted.
type Profile struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Grade     int       `json:"grade" db:"grade"`
	ClassName string    `json:"class_name" db:"class_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ResultRow is a result joined with the player's profile, for the admin
// console and export.
type ResultRow struct {
	Result
	Name      string `json:"name" db:"name"`
	Grade     int    `json:"grade" db:"grade"`
	ClassName string `json:"class_name" db:"class_name"`
}

// Store is the narrow persistence boundary the game core writes through.
// AppendResult is append-only and must not silently drop failures.
type Store interface {
	AppendResult(ctx context.Context, result *Result) error
	BestElapsed(ctx context.Context, userID string, level, cellCount, targetScore int) (int, bool, error)
	ResultsForUser(ctx context.Context, userID string) ([]Result, error)
	AllResults(ctx context.Context) ([]ResultRow, error)
	PerfectLevels(ctx context.Context, userID string, cellCount int) (map[int]bool, error)
	UpsertProfile(ctx context.Context, profile *Profile) error
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// SamplePolicy controls operand sampling. MaxAttempts caps duplicate
// resampling per sequence; when the cap is hit the duplicate is accepted.
// Intn may be injected by tests for determinism; nil means crypto/rand.
type SamplePolicy struct {
	MaxAttempts int
	Intn        func(n int) int
}

type RateLimiterEntry struct {
	Limiter    *rate.Limiter
	LastAccess time.Time
}

type App struct {
	Store          Store
	Sessions       map[string]*PlaySession
	SessionMutex   sync.RWMutex
	LimiterMap     map[string]*RateLimiterEntry
	LimiterMutex   sync.RWMutex
	Sampling       SamplePolicy
	IsAdmin        func(email string) bool
	IsProduction   bool
	StartTime      time.Time
	CookieMaxAge   time.Duration
	SessionTTL     time.Duration
	RateLimiterTTL time.Duration
	RateLimitRPS   int
	RateLimitBurst int
}
