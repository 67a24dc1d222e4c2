package progress

import (
	"fmt"
	"testing"
	"time"

	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	id := uuid.MustParse("6f1c2f64-5f43-4c59-9d1b-3c1f0f7b2a10")
	assert.Equal(t, "run_progress_6f1c2f64-5f43-4c59-9d1b-3c1f0f7b2a10", Key(id))
}

// redis 中保存的都是字符串，这里模拟一次写入后的读取
func TestHashRoundTrip(t *testing.T) {
	p := domain.RunProgress{
		Stage:       domain.StageShape,
		Subject:     "school1",
		Generation:  12,
		Generations: 300,
		BestFitness: 0.7315,
		UpdatedAt:   time.Date(2026, 3, 1, 8, 30, 0, 125, time.UTC),
	}

	stored := make(map[string]string)
	for k, v := range toHash(p) {
		stored[k] = fmt.Sprint(v)
	}

	got, err := fromHash(stored)
	require.NoError(t, err)
	assert.Equal(t, p.Stage, got.Stage)
	assert.Equal(t, p.Subject, got.Subject)
	assert.Equal(t, p.Generation, got.Generation)
	assert.Equal(t, p.Generations, got.Generations)
	assert.Equal(t, p.BestFitness, got.BestFitness)
	assert.True(t, p.UpdatedAt.Equal(got.UpdatedAt))
}

func TestFromHash_Invalid(t *testing.T) {
	_, err := fromHash(map[string]string{"stage": "urban", "generation": "x"})
	assert.ErrorContains(t, err, "generation")
}
