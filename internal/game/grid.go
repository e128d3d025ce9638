package game

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"

	"github.com/samber/lo"
	constants "kalkulludo/internal/constants"
	models "kalkulludo/internal/models"
	util "kalkulludo/internal/util"
)

const (
	singleDigitMax = 9
	twoDigitMax    = 99
	// Level 2 column values are capped at 50 so most subtractions stay
	// non-negative before the floor rule even applies.
	subtrahendCap = 50
)

// DefaultSamplePolicy resamples duplicates up to the attempt cap and draws
// from crypto/rand.
func DefaultSamplePolicy() models.SamplePolicy {
	return models.SamplePolicy{MaxAttempts: constants.SampleMaxAttempts}
}

func randIntn(policy models.SamplePolicy, n int) int {
	if policy.Intn != nil {
		return policy.Intn(n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		util.LogWarn("Error generating random number: %v, using fallback", err)
		return 0
	}
	return int(v.Int64())
}

// DeriveShape maps a requested cell count to grid dimensions. The classic
// 50-cell drill keeps its original 10x5 layout; any other count derives
// cols = ceil(sqrt(n)) and enough rows to hold n cells. rows*cols may
// exceed n; trailing cells are simply not generated.
func DeriveShape(cellCount int) (rows, cols int, err error) {
	if cellCount < constants.MinCellCount || cellCount > constants.MaxCellCount {
		return 0, 0, fmt.Errorf("cell count %d out of range [%d,%d]",
			cellCount, constants.MinCellCount, constants.MaxCellCount)
	}
	if cellCount == constants.DefaultCellCount {
		return 10, 5, nil
	}
	cols = int(math.Ceil(math.Sqrt(float64(cellCount))))
	rows = (cellCount + cols - 1) / cols
	return rows, cols, nil
}

// GenerateRowValues samples one operand per row. Levels 1 and 3 stay within
// the single-digit tables; levels 2 and 4 use two-digit operands.
func GenerateRowValues(policy models.SamplePolicy, level, count int) []int {
	upper := twoDigitMax
	if level == constants.LevelAddition || level == constants.LevelMultiplication {
		upper = singleDigitMax
	}
	return sampleSequence(policy, count, upper)
}

// GenerateColValues samples one operand per column. For the subtraction
// level the range is bounded by the largest row value so answers rarely hit
// the zero floor.
func GenerateColValues(policy models.SamplePolicy, level, count int, rowValues []int) []int {
	upper := twoDigitMax
	switch level {
	case constants.LevelAddition, constants.LevelMultiplication:
		upper = singleDigitMax
	case constants.LevelSubtraction:
		maxRow := twoDigitMax
		if len(rowValues) > 0 {
			maxRow = lo.Max(rowValues)
		}
		upper = min(maxRow, subtrahendCap)
	}
	return sampleSequence(policy, count, upper)
}

// sampleSequence draws count values from [1,upper], resampling duplicates
// up to policy.MaxAttempts per value. Uniqueness is best effort: once the
// cap is hit the duplicate is kept, so short ranges with long sequences
// still terminate.
func sampleSequence(policy models.SamplePolicy, count, upper int) []int {
	values := make([]int, 0, count)
	used := make(map[int]struct{}, count)

	for i := 0; i < count; i++ {
		var value int
		for attempts := 0; ; attempts++ {
			value = randIntn(policy, upper) + 1
			if _, dup := used[value]; !dup || attempts >= policy.MaxAttempts {
				break
			}
		}
		values = append(values, value)
		used[value] = struct{}{}
	}
	return values
}
