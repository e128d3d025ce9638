package constants

type ContextKey string

const (
	// DefaultCellCount is the classic 50-cell drill.
	DefaultCellCount = 50
	MinCellCount     = 1
	MaxCellCount     = 200

	SampleMaxAttempts = 100
)

const (
	LevelAddition       = 1
	LevelSubtraction    = 2
	LevelMultiplication = 3
	LevelMixed          = 4
)

const (
	SessionCookieName = "session_id"
	PlayerCookieName  = "player_id"
)

const (
	RouteNewGame      = "/game/new"
	RouteAnswer       = "/game/answer"
	RouteFinish       = "/game/finish"
	RouteGameState    = "/game/state"
	RouteDashboard    = "/dashboard"
	RouteMyResults    = "/me/results"
	RouteProfile      = "/profile"
	RouteHealthz      = "/healthz"
	RouteAdminResults = "/admin/results"
	RouteAdminExport  = "/admin/export"
)

const (
	ErrorCodeInvalidLevel      = "invalid_level"
	ErrorCodeInvalidCellCount  = "invalid_cell_count"
	ErrorCodeInvalidCellIndex  = "invalid_cell_index"
	ErrorCodeInvalidAnswer     = "invalid_answer"
	ErrorCodeNoActiveGame      = "no_active_game"
	ErrorCodeGameComplete      = "game_complete"
	ErrorCodeCellsRemaining    = "cells_remaining"
	ErrorCodeFinalizeInFlight  = "finalize_in_flight"
	ErrorCodeSaveFailed        = "save_failed"
	ErrorCodeLevelLocked       = "level_locked"
	ErrorCodeProfileIncomplete = "profile_incomplete"
)

const (
	CelebrationRecord  = "record"
	CelebrationPerfect = "perfect"
	CelebrationGood    = "good"
	CelebrationNone    = "none"
)

const (
	RequestIDKey ContextKey = "request_id"
)
