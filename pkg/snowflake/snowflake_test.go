package snowflake

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDGenerator(t *testing.T) {
	_, err := NewIDGenerator(-1)
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, err = NewIDGenerator(nodeMask + 1)
	assert.ErrorIs(t, err, ErrInvalidNode)

	gen, err := NewIDGenerator(nodeMask)
	require.NoError(t, err)
	assert.Equal(t, int64(nodeMask), gen.nodeID)
}

func TestIDGenerator_NextID(t *testing.T) {
	t.Run("Increasing", func(t *testing.T) {
		gen, err := NewIDGenerator(1)
		require.NoError(t, err)

		prev := gen.NextID()
		for i := 0; i < 1000; i++ {
			id := gen.NextID()
			assert.Greater(t, id, prev)
			prev = id
		}
	})

	t.Run("ConcurrentUnique", func(t *testing.T) {
		gen, err := NewIDGenerator(3)
		require.NoError(t, err)

		const workers = 8
		const perWorker = 500

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = make(map[int64]struct{}, workers*perWorker)
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				local := make([]int64, 0, perWorker)
				for j := 0; j < perWorker; j++ {
					local = append(local, gen.NextID())
				}
				mu.Lock()
				for _, id := range local {
					ids[id] = struct{}{}
				}
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Len(t, ids, workers*perWorker)
	})

	t.Run("ClockMovesBackwards", func(t *testing.T) {
		gen, err := NewIDGenerator(1)
		require.NoError(t, err)

		clock := Epoch + 10_000
		gen.nowMillis = func() int64 { return clock }

		first := gen.NextID()
		clock -= 5_000
		second := gen.NextID()

		assert.Greater(t, second, first)
		assert.Equal(t, Parse(first).Time, Parse(second).Time)
	})
}

func TestParse(t *testing.T) {
	gen, err := NewIDGenerator(123)
	require.NoError(t, err)

	before := time.Now().Add(-time.Second)
	parsed := Parse(gen.NextID())

	assert.Equal(t, int64(123), parsed.Node)
	assert.GreaterOrEqual(t, parsed.Step, int64(0))
	assert.True(t, parsed.Time.After(before))
}
