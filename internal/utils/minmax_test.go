package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMaxMin(t *testing.T) {
	require.Equal(t, 7, Max(5, 7))
	require.Equal(t, 5.5, Min(5.5, 5.7))
}

func TestMaxMinTime(t *testing.T) {
	a := time.Now()
	b := a.Add(time.Second)
	require.Equal(t, b, MaxTime(a, b))
	require.Equal(t, b, MaxTime(b, a))
	require.Equal(t, a, MinTime(a, b))
	require.Equal(t, a, MinTime(b, a))
}

func TestMinNonZeroDuration(t *testing.T) {
	require.Zero(t, MinNonZeroDuration(0, 0))
	require.Equal(t, time.Second, MinNonZeroDuration(0, time.Second))
	require.Equal(t, time.Second, MinNonZeroDuration(time.Second, 0))
	require.Equal(t, time.Second, MinNonZeroDuration(time.Second, 2*time.Second))
}
