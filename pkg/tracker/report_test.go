package tracker_test

import (
	"testing"

	"github.com/ogulcanaydogan/spendwatch/pkg/model"
	"github.com/ogulcanaydogan/spendwatch/pkg/tracker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyTotals(t *testing.T) {
	rows := tracker.DailyTotals([]model.ExpenseRecord{
		expense("u2", "a", "10", "2024-03-14"),
		expense("u1", "b", "20", "2024-03-15"),
		expense("u1", "c", "35", "2024-03-15"),
		expense("u2", "d", "50", "2024-03-15"),
	}, decimal.NewFromInt(50))

	require.Len(t, rows, 3)

	assert.Equal(t, "u1", rows[0].UserID)
	assert.Equal(t, "2024-03-15", rows[0].Date)
	assert.Equal(t, 2, rows[0].Count)
	assert.True(t, decimal.NewFromInt(55).Equal(rows[0].Total))
	assert.True(t, rows[0].OverLimit)

	assert.Equal(t, "u2", rows[1].UserID)
	assert.False(t, rows[1].OverLimit)

	assert.Equal(t, "2024-03-14", rows[2].Date)
}

func TestDailyTotals_Empty(t *testing.T) {
	assert.Empty(t, tracker.DailyTotals(nil, decimal.NewFromInt(50)))
}
