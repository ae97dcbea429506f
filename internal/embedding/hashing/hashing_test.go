package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed_Deterministic(t *testing.T) {
	e := NewEmbedder(64)
	v1, err := e.Embed(context.Background(), "Photosynthesis converts light into chemical energy.")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "Photosynthesis converts light into chemical energy.")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 64)
}

func TestEmbed_Normalized(t *testing.T) {
	e := NewEmbedder(32)
	v, err := e.Embed(context.Background(), "cells divide by mitosis")
	require.NoError(t, err)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestEmbed_NoTokens(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	v, err := e.Embed(context.Background(), " the ... of ")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestEmbed_SharedTokensAreCloser(t *testing.T) {
	e := NewEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "mitochondria energy")
	near, _ := e.Embed(ctx, "the mitochondria produce energy")
	far, _ := e.Embed(ctx, "volcanic basalt erosion")
	assert.Less(t, sqDist(q, near), sqDist(q, far))
}

func sqDist(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return s
}
