package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	constants "kalkulludo/internal/constants"
	game "kalkulludo/internal/game"
	models "kalkulludo/internal/models"
	session "kalkulludo/internal/session"
	util "kalkulludo/internal/util"
)

type newGameRequest struct {
	Level     int `json:"level"`
	CellCount int `json:"cellCount"`
}

type answerRequest struct {
	Index int    `json:"index"`
	Value string `json:"value"`
}

type profileRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Grade     int    `json:"grade"`
	ClassName string `json:"className"`
}

type cellView struct {
	Row       int              `json:"row"`
	Col       int              `json:"col"`
	Operation models.Operation `json:"operation"`
	Answer    *int             `json:"answer"`
	Correct   *bool            `json:"correct,omitempty"`
	Expected  *int             `json:"expected,omitempty"`
}

func errorResponse(c *gin.Context, code string) {
	c.JSON(statusForCode(code), gin.H{"error": code})
}

func statusForCode(code string) int {
	switch code {
	case constants.ErrorCodeNoActiveGame:
		return http.StatusNotFound
	case constants.ErrorCodeFinalizeInFlight, constants.ErrorCodeGameComplete:
		return http.StatusConflict
	case constants.ErrorCodeSaveFailed:
		return http.StatusBadGateway
	case constants.ErrorCodeLevelLocked:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// gameView shapes a play session for the client. Expected answers and
// per-cell verdicts are only revealed once the session is complete.
func gameView(s *models.PlaySession) gin.H {
	complete := s.State == models.StateComplete
	cells := lo.Map(s.Questions, func(q models.Question, i int) cellView {
		cv := cellView{Row: q.Row, Col: q.Col, Operation: q.Operation, Answer: s.Answers[i]}
		if complete {
			expected := game.ExpectedAnswer(s.RowValues[q.Row], s.ColValues[q.Col], q.Operation)
			correct := s.Answers[i] != nil && *s.Answers[i] == expected
			cv.Correct = &correct
			cv.Expected = &expected
		}
		return cv
	})

	view := gin.H{
		"id":           s.ID,
		"level":        s.Level,
		"cellCount":    s.CellCount,
		"rows":         s.Rows,
		"cols":         s.Cols,
		"rowValues":    s.RowValues,
		"colValues":    s.ColValues,
		"cells":        cells,
		"state":        s.State,
		"correctCount": s.CorrectCount,
		"remaining":    game.AnswersRemaining(s),
	}
	if complete {
		view["mistakes"] = s.Mistakes
		view["elapsedSeconds"] = s.ElapsedSeconds
		view["elapsed"] = util.FormatDrillTime(s.ElapsedSeconds)
		view["newRecord"] = s.NewRecord
		view["celebration"] = s.Celebration
		view["saved"] = s.Saved
	}
	return view
}

func NewGameHandler(app *models.App, c *gin.Context) {
	sessionID := session.GetOrCreateSession(app, c)
	playerID := session.CurrentPlayerID(c)

	var req newGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, constants.ErrorCodeInvalidLevel)
		return
	}
	if req.CellCount == 0 {
		req.CellCount = constants.DefaultCellCount
	}
	if req.Level < constants.LevelAddition || req.Level > constants.LevelMixed {
		errorResponse(c, constants.ErrorCodeInvalidLevel)
		return
	}

	// Level gating only exists for registered players; anonymous play has
	// no progress to gate on.
	if playerID != "" && req.Level > constants.LevelAddition {
		perfect, err := app.Store.PerfectLevels(c.Request.Context(), playerID, req.CellCount)
		if err != nil {
			errorResponse(c, constants.ErrorCodeSaveFailed)
			return
		}
		if !perfect[req.Level-1] {
			errorResponse(c, constants.ErrorCodeLevelLocked)
			return
		}
	}

	s, err := session.StartGame(app, sessionID, playerID, req.Level, req.CellCount)
	if err != nil {
		errorResponse(c, constants.ErrorCodeInvalidCellCount)
		return
	}
	c.JSON(http.StatusOK, gameView(s))
}

func AnswerHandler(app *models.App, c *gin.Context) {
	sessionID := session.GetOrCreateSession(app, c)

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, constants.ErrorCodeInvalidAnswer)
		return
	}

	s, err := session.EditAnswer(app, sessionID, req.Index, req.Value)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"correctCount": s.CorrectCount,
		"remaining":    game.AnswersRemaining(s),
		"state":        s.State,
	})
}

func FinishHandler(app *models.App, c *gin.Context) {
	sessionID := session.GetOrCreateSession(app, c)

	s, err := session.FinishGame(app, c.Request.Context(), sessionID)
	if err != nil {
		code := err.Error()
		if strings.Contains(code, constants.ErrorCodeSaveFailed) {
			code = constants.ErrorCodeSaveFailed
		}
		errorResponse(c, code)
		return
	}
	c.JSON(http.StatusOK, gameView(s))
}

func GameStateHandler(app *models.App, c *gin.Context) {
	sessionID := session.GetOrCreateSession(app, c)
	s, exists := session.GetGame(app, sessionID)
	if !exists {
		errorResponse(c, constants.ErrorCodeNoActiveGame)
		return
	}
	c.JSON(http.StatusOK, gameView(s))
}

func DashboardHandler(app *models.App, c *gin.Context) {
	ctx := c.Request.Context()
	playerID := session.CurrentPlayerID(c)

	type levelStatus struct {
		Level    int    `json:"level"`
		Unlocked bool   `json:"unlocked"`
		BestTime *int   `json:"bestTime"`
		Best     string `json:"best,omitempty"`
	}

	perfect := map[int]bool{}
	if playerID != "" {
		var err error
		perfect, err = app.Store.PerfectLevels(ctx, playerID, constants.DefaultCellCount)
		if err != nil {
			errorResponse(c, constants.ErrorCodeSaveFailed)
			return
		}
	}

	levels := make([]levelStatus, 0, constants.LevelMixed)
	for level := constants.LevelAddition; level <= constants.LevelMixed; level++ {
		ls := levelStatus{
			Level: level,
			// Level 1 is always open; each later level opens on a perfect
			// run of the previous one.
			Unlocked: level == constants.LevelAddition || perfect[level-1],
		}
		if playerID != "" {
			best, found, err := app.Store.BestElapsed(ctx, playerID, level,
				constants.DefaultCellCount, constants.DefaultCellCount)
			if err != nil {
				errorResponse(c, constants.ErrorCodeSaveFailed)
				return
			}
			if found {
				ls.BestTime = &best
				ls.Best = util.FormatDrillTime(best)
			}
		}
		levels = append(levels, ls)
	}

	resp := gin.H{"levels": levels, "registered": playerID != ""}
	if playerID != "" {
		if profile, err := app.Store.GetProfile(ctx, playerID); err == nil {
			resp["profile"] = profile
		} else if !errors.Is(err, sql.ErrNoRows) {
			errorResponse(c, constants.ErrorCodeSaveFailed)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

func MyResultsHandler(app *models.App, c *gin.Context) {
	playerID := session.CurrentPlayerID(c)
	if playerID == "" {
		errorResponse(c, constants.ErrorCodeProfileIncomplete)
		return
	}
	results, err := app.Store.ResultsForUser(c.Request.Context(), playerID)
	if err != nil {
		errorResponse(c, constants.ErrorCodeSaveFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func ProfileHandler(app *models.App, c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		errorResponse(c, constants.ErrorCodeProfileIncomplete)
		return
	}

	playerID := session.CurrentPlayerID(c)
	if playerID == "" {
		playerID = uuid.NewString()
	}

	profile := &models.Profile{
		UserID:    playerID,
		Name:      strings.TrimSpace(req.Name),
		Email:     req.Email,
		Grade:     req.Grade,
		ClassName: req.ClassName,
	}
	if err := app.Store.UpsertProfile(c.Request.Context(), profile); err != nil {
		util.LogWarn("Failed to save profile for %s: %v", playerID, err)
		errorResponse(c, constants.ErrorCodeSaveFailed)
		return
	}
	session.SetPlayerCookie(app, c, playerID)
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func HealthzHandler(app *models.App, c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(app.StartTime)

	app.SessionMutex.RLock()
	sessionCount := len(app.Sessions)
	app.SessionMutex.RUnlock()

	app.LimiterMutex.RLock()
	limiterCount := len(app.LimiterMap)
	app.LimiterMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"env":             map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"active_sessions": sessionCount,
		"active_limiters": limiterCount,
		"memory_alloc_mb": m.Alloc / 1024 / 1024,
		"memory_sys_mb":   m.Sys / 1024 / 1024,
		"memory_gc_count": m.NumGC,
		"uptime":          util.FormatUptime(uptime),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
