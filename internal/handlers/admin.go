package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	excel "kalkulludo/internal/excel"
	models "kalkulludo/internal/models"
	session "kalkulludo/internal/session"
	util "kalkulludo/internal/util"
)

// requireAdmin resolves the caller's registered email and checks it against
// the injected admin predicate. The allowlist itself lives in configuration,
// never in code.
func requireAdmin(app *models.App, c *gin.Context) bool {
	playerID := session.CurrentPlayerID(c)
	if playerID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}

	profile, err := app.Store.GetProfile(c.Request.Context(), playerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		} else {
			util.LogWarn("Admin check failed for %s: %v", playerID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		}
		return false
	}
	if app.IsAdmin == nil || !app.IsAdmin(profile.Email) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return false
	}
	return true
}

func AdminResultsHandler(app *models.App, c *gin.Context) {
	if !requireAdmin(app, c) {
		return
	}
	rows, err := app.Store.AllResults(c.Request.Context())
	if err != nil {
		util.LogWarn("Failed to load results for admin: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": rows})
}

func AdminExportHandler(app *models.App, c *gin.Context) {
	if !requireAdmin(app, c) {
		return
	}
	rows, err := app.Store.AllResults(c.Request.Context())
	if err != nil {
		util.LogWarn("Failed to load results for export: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	filename := fmt.Sprintf("results-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := excel.WriteResults(c.Writer, rows); err != nil {
		util.LogWarn("Failed to stream export: %v", err)
	}
}
