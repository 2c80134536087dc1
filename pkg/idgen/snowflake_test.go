package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidWorkerID(t *testing.T) {
	_, err := New(-1)
	assert.Error(t, err)

	_, err = New(maxWorkerID + 1)
	assert.Error(t, err)
}

func TestGenerate_UniqueAndIncreasing(t *testing.T) {
	gen, err := New(3)
	require.NoError(t, err)

	prev := gen.Generate()
	for i := 0; i < 10000; i++ {
		id := gen.Generate()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerate_Concurrent(t *testing.T) {
	gen, err := New(1)
	require.NoError(t, err)

	const workers, perWorker = 8, 500
	ids := make(chan int64, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- gen.Generate()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
}

func TestPrefixes(t *testing.T) {
	gen, err := New(1)
	require.NoError(t, err)

	ref := gen.TransactionRef()
	assert.True(t, strings.HasPrefix(ref, "TXN"))
	assert.Len(t, ref, 3+14+8)

	assert.True(t, strings.HasPrefix(gen.MemberNo(), "MBR"))
}
