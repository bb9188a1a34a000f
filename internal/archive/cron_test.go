package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCronTime_MonthlyAtThree(t *testing.T) {
	after := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)

	next, err := nextCronTime("0 3 1 * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 1, 3, 0, 0, 0, time.UTC), next)
}

func TestNextCronTime_EveryMinute(t *testing.T) {
	after := time.Date(2026, 6, 15, 10, 30, 20, 0, time.UTC)

	next, err := nextCronTime("* * * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 15, 10, 31, 0, 0, time.UTC), next)
}

func TestNextCronTime_ListField(t *testing.T) {
	after := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)

	next, err := nextCronTime("0 3 1,15 * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 1, 3, 0, 0, 0, time.UTC), next)
}

func TestNextCronTime_InvalidExpr(t *testing.T) {
	_, err := nextCronTime("not a cron", time.Now())
	require.Error(t, err)

	_, err = nextCronTime("0 3 x * *", time.Now())
	require.Error(t, err)
}
