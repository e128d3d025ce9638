package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	constants "kalkulludo/internal/constants"
	models "kalkulludo/internal/models"
	util "kalkulludo/internal/util"
)

var mixedOps = []models.Operation{models.OpAdd, models.OpSub, models.OpMul}

// FixedOperation returns the single operation used by levels 1-3. The mixed
// level has no fixed operation and reports ok=false.
func FixedOperation(level int) (models.Operation, bool) {
	switch level {
	case constants.LevelAddition:
		return models.OpAdd, true
	case constants.LevelSubtraction:
		return models.OpSub, true
	case constants.LevelMultiplication:
		return models.OpMul, true
	default:
		return "", false
	}
}

// AssignQuestions produces exactly cellCount cells in row-major order over
// the derived shape. Levels 1-3 repeat the level's fixed operation; the
// mixed level draws each cell independently, so "mixed" never appears as a
// stored operation.
func AssignQuestions(policy models.SamplePolicy, level, cellCount int) ([]models.Question, error) {
	rows, cols, err := DeriveShape(cellCount)
	if err != nil {
		return nil, err
	}

	fixed, hasFixed := FixedOperation(level)
	questions := make([]models.Question, 0, cellCount)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if len(questions) == cellCount {
				return questions, nil
			}
			op := fixed
			if !hasFixed {
				op = mixedOps[randIntn(policy, len(mixedOps))]
			}
			questions = append(questions, models.Question{Row: row, Col: col, Operation: op})
		}
	}
	return questions, nil
}

// ExpectedAnswer computes the correct answer for a cell. Subtraction floors
// at zero: a learner is never asked to express a negative number.
func ExpectedAnswer(rowValue, colValue int, op models.Operation) int {
	switch op {
	case models.OpSub:
		return max(0, rowValue-colValue)
	case models.OpMul:
		return rowValue * colValue
	default:
		return rowValue + colValue
	}
}

// NewPlaySession generates the grid, operand sequences, and question
// assignment once and starts the clock. All answers begin unanswered.
func NewPlaySession(policy models.SamplePolicy, playerID string, level, cellCount int) (*models.PlaySession, error) {
	if level < constants.LevelAddition || level > constants.LevelMixed {
		return nil, fmt.Errorf("invalid level %d", level)
	}
	rows, cols, err := DeriveShape(cellCount)
	if err != nil {
		return nil, err
	}

	rowValues := GenerateRowValues(policy, level, rows)
	colValues := GenerateColValues(policy, level, cols, rowValues)
	questions, err := AssignQuestions(policy, level, cellCount)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &models.PlaySession{
		ID:             uuid.NewString(),
		PlayerID:       playerID,
		Level:          level,
		CellCount:      cellCount,
		Rows:           rows,
		Cols:           cols,
		RowValues:      rowValues,
		ColValues:      colValues,
		Questions:      questions,
		Answers:        make([]*int, cellCount),
		State:          models.StateInProgress,
		StartTime:      now,
		Celebration:    constants.CelebrationNone,
		LastAccessTime: now,
	}
	util.LogInfo("New level %d game %s: %d cells (%dx%d)", level, s.ID, cellCount, rows, cols)
	return s, nil
}

// CellIndex flattens (row, col) using the session's actual column count.
func CellIndex(s *models.PlaySession, row, col int) int {
	return row*s.Cols + col
}

// NormalizeAnswer strips every non-digit rune and parses the rest. An empty
// result means "unanswered", never zero. ok=false means the input cannot be
// stored and the edit must leave prior state unchanged.
func NormalizeAnswer(raw string) (*int, bool) {
	digits := strings.Map(func(r rune) rune {
		if r < '0' || r > '9' {
			return -1
		}
		return r
	}, raw)
	if digits == "" {
		return nil, true
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil, false
	}
	return &n, true
}

// SetAnswer stores one edited answer and refreshes the live correct count.
// Malformed input is rejected without touching the session.
func SetAnswer(s *models.PlaySession, index int, raw string) error {
	if s.State != models.StateInProgress {
		return errors.New(constants.ErrorCodeGameComplete)
	}
	if index < 0 || index >= s.CellCount {
		return errors.New(constants.ErrorCodeInvalidCellIndex)
	}
	value, ok := NormalizeAnswer(raw)
	if !ok {
		return errors.New(constants.ErrorCodeInvalidAnswer)
	}
	s.Answers[index] = value
	RecountCorrect(s)
	s.LastAccessTime = time.Now()
	return nil
}

// RecountCorrect re-evaluates every filled cell against the scoring rule
// and stores the live count. Unanswered cells never count as incorrect
// here; they only matter at finalization, which is gated on all cells
// being filled. Recomputation is a pure function of the answer map, so
// repeated calls are idempotent.
func RecountCorrect(s *models.PlaySession) int {
	correct := 0
	for i, answer := range s.Answers {
		if answer == nil {
			continue
		}
		q := s.Questions[i]
		if *answer == ExpectedAnswer(s.RowValues[q.Row], s.ColValues[q.Col], q.Operation) {
			correct++
		}
	}
	s.CorrectCount = correct
	return correct
}

// AnswersRemaining counts unanswered cells.
func AnswersRemaining(s *models.PlaySession) int {
	remaining := 0
	for _, answer := range s.Answers {
		if answer == nil {
			remaining++
		}
	}
	return remaining
}

// BeginFinalize moves InProgress -> Finalizing and freezes the
// authoritative counts and elapsed time. Finish is explicit: it is
// rejected while any cell is unanswered, and rejected while another
// finalize is already in flight. The caller holds the session lock.
func BeginFinalize(s *models.PlaySession) error {
	switch s.State {
	case models.StateFinalizing:
		return errors.New(constants.ErrorCodeFinalizeInFlight)
	case models.StateComplete:
		return errors.New(constants.ErrorCodeGameComplete)
	case models.StateInProgress:
	default:
		return errors.New(constants.ErrorCodeNoActiveGame)
	}
	if AnswersRemaining(s) > 0 {
		return errors.New(constants.ErrorCodeCellsRemaining)
	}

	s.State = models.StateFinalizing
	correct := RecountCorrect(s)
	s.Mistakes = s.CellCount - correct
	s.ElapsedSeconds = int(time.Since(s.StartTime).Seconds())
	return nil
}

// CompleteFinalize runs the Finalizing step: read the prior best, decide
// the record flag, append one Result. The two store calls are sequential on
// the request context so the record comparison never races an in-flight
// append. Any store failure reverts the session to InProgress with answers
// intact so the player can retry the finish. Without a registered player
// the session completes locally and nothing is persisted.
func CompleteFinalize(ctx context.Context, store models.Store, s *models.PlaySession) error {
	if s.State != models.StateFinalizing {
		return errors.New(constants.ErrorCodeNoActiveGame)
	}

	perfect := s.CorrectCount == s.CellCount
	s.NewRecord = false

	if s.PlayerID == "" || store == nil {
		s.Celebration = celebrationFor(s, perfect)
		s.State = models.StateComplete
		util.LogInfo("Game %s finished anonymously: %d/%d in %ds (not recorded)",
			s.ID, s.CorrectCount, s.CellCount, s.ElapsedSeconds)
		return nil
	}

	if perfect {
		best, found, err := store.BestElapsed(ctx, s.PlayerID, s.Level, s.CellCount, s.CellCount)
		if err != nil {
			s.State = models.StateInProgress
			return fmt.Errorf("read best time: %w", err)
		}
		// Ties are not records; strict improvement only.
		s.NewRecord = !found || s.ElapsedSeconds < best
	}

	result := &models.Result{
		UserID:      s.PlayerID,
		Level:       s.Level,
		CellCount:   s.CellCount,
		Score:       s.CorrectCount,
		TimeSeconds: s.ElapsedSeconds,
		Mistakes:    s.Mistakes,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.AppendResult(ctx, result); err != nil {
		s.NewRecord = false
		s.State = models.StateInProgress
		return fmt.Errorf("append result: %w", err)
	}

	s.Saved = true
	s.Celebration = celebrationFor(s, perfect)
	s.State = models.StateComplete
	util.LogInfo("Game %s finished by %s: %d/%d in %ds (record=%v)",
		s.ID, s.PlayerID, s.CorrectCount, s.CellCount, s.ElapsedSeconds, s.NewRecord)
	return nil
}

// FinalizeSession runs the whole finish in one call, for single-owner use.
func FinalizeSession(ctx context.Context, store models.Store, s *models.PlaySession) error {
	if err := BeginFinalize(s); err != nil {
		return err
	}
	return CompleteFinalize(ctx, store, s)
}

func celebrationFor(s *models.PlaySession, perfect bool) string {
	switch {
	case s.NewRecord:
		return constants.CelebrationRecord
	case perfect:
		return constants.CelebrationPerfect
	case s.CorrectCount*5 >= s.CellCount*4:
		return constants.CelebrationGood
	default:
		return constants.CelebrationNone
	}
}
