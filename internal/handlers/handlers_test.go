package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	constants "kalkulludo/internal/constants"
	game "kalkulludo/internal/game"
	models "kalkulludo/internal/models"
)

type fakeStore struct {
	appendErr error
	appended  []*models.Result
	perfect   map[int]bool
	profiles  map[string]*models.Profile
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		perfect:  map[int]bool{},
		profiles: map[string]*models.Profile{},
	}
}

func (f *fakeStore) AppendResult(_ context.Context, r *models.Result) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, r)
	return nil
}

func (f *fakeStore) BestElapsed(context.Context, string, int, int, int) (int, bool, error) {
	return 0, false, nil
}

func (f *fakeStore) ResultsForUser(context.Context, string) ([]models.Result, error) {
	return nil, nil
}

func (f *fakeStore) AllResults(context.Context) ([]models.ResultRow, error) { return nil, nil }

func (f *fakeStore) PerfectLevels(context.Context, string, int) (map[int]bool, error) {
	return f.perfect, nil
}

func (f *fakeStore) UpsertProfile(_ context.Context, p *models.Profile) error {
	f.profiles[p.UserID] = p
	return nil
}

func (f *fakeStore) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, errors.New("no rows")
	}
	return p, nil
}

func testApp(store models.Store) *models.App {
	return &models.App{
		Store:        store,
		Sessions:     make(map[string]*models.PlaySession),
		LimiterMap:   make(map[string]*models.RateLimiterEntry),
		Sampling:     game.DefaultSamplePolicy(),
		StartTime:    time.Now(),
		CookieMaxAge: time.Hour,
		SessionTTL:   time.Hour,
	}
}

func testRouter(app *models.App) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST(constants.RouteNewGame, func(c *gin.Context) { NewGameHandler(app, c) })
	router.POST(constants.RouteAnswer, func(c *gin.Context) { AnswerHandler(app, c) })
	router.POST(constants.RouteFinish, func(c *gin.Context) { FinishHandler(app, c) })
	router.GET(constants.RouteGameState, func(c *gin.Context) { GameStateHandler(app, c) })
	return router
}

type client struct {
	router  *gin.Engine
	cookies []*http.Cookie
}

func (cl *client) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cl.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	cl.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		cl.cookies = append(cl.cookies, c)
	}
	return w
}

type gameResponse struct {
	ID        string `json:"id"`
	Level     int    `json:"level"`
	CellCount int    `json:"cellCount"`
	RowValues []int  `json:"rowValues"`
	ColValues []int  `json:"colValues"`
	Cells     []struct {
		Row       int              `json:"row"`
		Col       int              `json:"col"`
		Operation models.Operation `json:"operation"`
		Correct   *bool            `json:"correct"`
		Expected  *int             `json:"expected"`
	} `json:"cells"`
	State        models.SessionState `json:"state"`
	CorrectCount int                 `json:"correctCount"`
	Remaining    int                 `json:"remaining"`
	NewRecord    bool                `json:"newRecord"`
	Celebration  string              `json:"celebration"`
	Saved        bool                `json:"saved"`
}

func decodeGame(t *testing.T, w *httptest.ResponseRecorder) gameResponse {
	t.Helper()
	var resp gameResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func playerCookie(id string) *http.Cookie {
	return &http.Cookie{Name: constants.PlayerCookieName, Value: id}
}

func TestPlayThroughEndToEnd(t *testing.T) {
	store := newFakeStore()
	app := testApp(store)
	cl := &client{router: testRouter(app)}
	cl.cookies = append(cl.cookies, playerCookie("player-1234567890"))

	w := cl.do(t, http.MethodPost, constants.RouteNewGame, gin.H{"level": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	g := decodeGame(t, w)
	assert.Equal(t, 50, g.CellCount)
	assert.Equal(t, models.StateInProgress, g.State)
	assert.Len(t, g.Cells, 50)

	// Premature finish is rejected and leaves the game alive.
	w = cl.do(t, http.MethodPost, constants.RouteFinish, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), constants.ErrorCodeCellsRemaining)

	for i, cell := range g.Cells {
		expected := game.ExpectedAnswer(g.RowValues[cell.Row], g.ColValues[cell.Col], cell.Operation)
		w = cl.do(t, http.MethodPost, constants.RouteAnswer, gin.H{
			"index": i, "value": fmt.Sprintf("%d", expected),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = cl.do(t, http.MethodPost, constants.RouteFinish, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	g = decodeGame(t, w)
	assert.Equal(t, models.StateComplete, g.State)
	assert.Equal(t, 50, g.CorrectCount)
	assert.True(t, g.NewRecord)
	assert.Equal(t, constants.CelebrationRecord, g.Celebration)
	assert.True(t, g.Saved)
	require.Len(t, store.appended, 1)
	assert.Equal(t, "player-1234567890", store.appended[0].UserID)

	// The completed game stays frozen: a second finish conflicts, edits
	// are rejected.
	w = cl.do(t, http.MethodPost, constants.RouteFinish, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = cl.do(t, http.MethodPost, constants.RouteAnswer, gin.H{"index": 0, "value": "1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, store.appended, 1)
}

func TestAnswerValidation(t *testing.T) {
	app := testApp(newFakeStore())
	cl := &client{router: testRouter(app)}

	w := cl.do(t, http.MethodPost, constants.RouteNewGame, gin.H{"level": 3})
	require.Equal(t, http.StatusOK, w.Code)

	w = cl.do(t, http.MethodPost, constants.RouteAnswer, gin.H{"index": 99, "value": "3"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), constants.ErrorCodeInvalidCellIndex)

	// Stripping non-digits still yields a stored answer.
	w = cl.do(t, http.MethodPost, constants.RouteAnswer, gin.H{"index": 0, "value": " 1 2 "})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(49), resp["remaining"])
}

func TestFinishFailureIsRetryable(t *testing.T) {
	store := newFakeStore()
	store.appendErr = errors.New("backend down")
	app := testApp(store)
	cl := &client{router: testRouter(app)}
	cl.cookies = append(cl.cookies, playerCookie("player-1234567890"))

	w := cl.do(t, http.MethodPost, constants.RouteNewGame, gin.H{"level": 1})
	require.Equal(t, http.StatusOK, w.Code)
	g := decodeGame(t, w)
	for i, cell := range g.Cells {
		expected := game.ExpectedAnswer(g.RowValues[cell.Row], g.ColValues[cell.Col], cell.Operation)
		cl.do(t, http.MethodPost, constants.RouteAnswer, gin.H{
			"index": i, "value": fmt.Sprintf("%d", expected),
		})
	}

	w = cl.do(t, http.MethodPost, constants.RouteFinish, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), constants.ErrorCodeSaveFailed)

	// The game is still in progress and a retry succeeds once the backend
	// recovers.
	w = cl.do(t, http.MethodGet, constants.RouteGameState, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StateInProgress, decodeGame(t, w).State)

	store.appendErr = nil
	w = cl.do(t, http.MethodPost, constants.RouteFinish, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, store.appended, 1)
}

func TestAnonymousFinishIsNotPersisted(t *testing.T) {
	store := newFakeStore()
	app := testApp(store)
	cl := &client{router: testRouter(app)}

	w := cl.do(t, http.MethodPost, constants.RouteNewGame, gin.H{"level": 1})
	require.Equal(t, http.StatusOK, w.Code)
	g := decodeGame(t, w)
	for i, cell := range g.Cells {
		expected := game.ExpectedAnswer(g.RowValues[cell.Row], g.ColValues[cell.Col], cell.Operation)
		cl.do(t, http.MethodPost, constants.RouteAnswer, gin.H{
			"index": i, "value": fmt.Sprintf("%d", expected),
		})
	}

	w = cl.do(t, http.MethodPost, constants.RouteFinish, nil)
	require.Equal(t, http.StatusOK, w.Code)
	g = decodeGame(t, w)
	assert.Equal(t, models.StateComplete, g.State)
	assert.False(t, g.Saved)
	assert.False(t, g.NewRecord)
	assert.Equal(t, constants.CelebrationPerfect, g.Celebration)
	assert.Empty(t, store.appended)
}

func TestLevelGatingForRegisteredPlayers(t *testing.T) {
	store := newFakeStore()
	app := testApp(store)
	cl := &client{router: testRouter(app)}
	cl.cookies = append(cl.cookies, playerCookie("player-1234567890"))

	w := cl.do(t, http.MethodPost, constants.RouteNewGame, gin.H{"level": 2})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), constants.ErrorCodeLevelLocked)

	store.perfect[1] = true
	w = cl.do(t, http.MethodPost, constants.RouteNewGame, gin.H{"level": 2})
	assert.Equal(t, http.StatusOK, w.Code)
}
