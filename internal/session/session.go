package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	constants "kalkulludo/internal/constants"
	game "kalkulludo/internal/game"
	models "kalkulludo/internal/models"
	util "kalkulludo/internal/util"
)

func GetOrCreateSession(app *models.App, c *gin.Context) string {
	sessionID, err := c.Cookie(constants.SessionCookieName)
	if err != nil || len(sessionID) < 10 {
		sessionID = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		secure := app.IsProduction
		c.SetCookie(constants.SessionCookieName, sessionID, int(app.CookieMaxAge.Seconds()), "/", "", secure, true)
		util.LogInfo("Created new session: %s", sessionID)
	}
	return sessionID
}

// CurrentPlayerID reads the registered identity. Empty means anonymous:
// play proceeds, persistence is skipped.
func CurrentPlayerID(c *gin.Context) string {
	playerID, err := c.Cookie(constants.PlayerCookieName)
	if err != nil || len(playerID) < 10 {
		return ""
	}
	return playerID
}

func SetPlayerCookie(app *models.App, c *gin.Context, playerID string) {
	c.SetSameSite(http.SameSiteStrictMode)
	secure := app.IsProduction
	c.SetCookie(constants.PlayerCookieName, playerID, int(app.CookieMaxAge.Seconds()), "/", "", secure, true)
}

// StartGame replaces any previous game for this session with a fresh one.
// An in-flight finalize on the replaced game keeps its own PlaySession and
// cannot touch the new one.
func StartGame(app *models.App, sessionID, playerID string, level, cellCount int) (*models.PlaySession, error) {
	s, err := game.NewPlaySession(app.Sampling, playerID, level, cellCount)
	if err != nil {
		return nil, err
	}
	app.SessionMutex.Lock()
	app.Sessions[sessionID] = s
	app.SessionMutex.Unlock()
	return s, nil
}

func GetGame(app *models.App, sessionID string) (*models.PlaySession, bool) {
	app.SessionMutex.RLock()
	s, exists := app.Sessions[sessionID]
	app.SessionMutex.RUnlock()
	if exists {
		app.SessionMutex.Lock()
		s.LastAccessTime = time.Now()
		app.SessionMutex.Unlock()
	}
	return s, exists
}

// EditAnswer applies one answer edit under the session lock.
func EditAnswer(app *models.App, sessionID string, index int, raw string) (*models.PlaySession, error) {
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()

	s, exists := app.Sessions[sessionID]
	if !exists {
		return nil, errors.New(constants.ErrorCodeNoActiveGame)
	}
	if err := game.SetAnswer(s, index, raw); err != nil {
		return s, err
	}
	return s, nil
}

// FinishGame drives the finalize transition. The InProgress -> Finalizing
// step runs under the session lock so a rapid double submit sees
// finalize_in_flight instead of appending twice; the store calls run
// outside it.
func FinishGame(app *models.App, ctx context.Context, sessionID string) (*models.PlaySession, error) {
	app.SessionMutex.Lock()
	s, exists := app.Sessions[sessionID]
	if !exists {
		app.SessionMutex.Unlock()
		return nil, errors.New(constants.ErrorCodeNoActiveGame)
	}
	err := game.BeginFinalize(s)
	app.SessionMutex.Unlock()
	if err != nil {
		return s, err
	}

	if err := game.CompleteFinalize(ctx, app.Store, s); err != nil {
		util.LogWarn("Finalize failed for session %s, reverted to in-progress: %v", sessionID, err)
		return s, errors.Join(errors.New(constants.ErrorCodeSaveFailed), err)
	}
	return s, nil
}

func CleanupExpiredSessions(app *models.App) {
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()

	now := time.Now()
	expiredCount := 0
	for sessionID, s := range app.Sessions {
		if now.Sub(s.LastAccessTime) > app.SessionTTL {
			delete(app.Sessions, sessionID)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		util.LogInfo("Cleaned up %d expired sessions", expiredCount)
	}
}
