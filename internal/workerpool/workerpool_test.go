package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeDefaultsToNumCPUWhenUnset(t *testing.T) {
	t.Setenv("TALARIA_THREADS", "")
	assert.Greater(t, Size(), 0)
}

func TestSizeHonorsEnvOverride(t *testing.T) {
	t.Setenv("TALARIA_THREADS", "3")
	assert.Equal(t, 3, Size())
}

func TestSizeIgnoresInvalidOverride(t *testing.T) {
	t.Setenv("TALARIA_THREADS", "not-a-number")
	assert.Greater(t, Size(), 0)
}

func TestRunProcessesEveryItem(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var sum int64
	err := Run(context.Background(), items, func(_ context.Context, n int) error {
		atomic.AddInt64(&sum, int64(n))
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(15), sum)
}

func TestRunPropagatesFirstError(t *testing.T) {
	items := []int{1, 2, 3}
	boom := errors.New("boom")
	err := Run(context.Background(), items, func(_ context.Context, n int) error {
		if n == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}
