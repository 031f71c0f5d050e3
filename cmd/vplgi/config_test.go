package main

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVec3(t *testing.T) {
	v, err := parseVec3("0, 0.8,-1.5")
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{0, 0.8, -1.5}, v)

	_, err = parseVec3("1,2")
	assert.Error(t, err)
	_, err = parseVec3("1,x,2")
	assert.Error(t, err)
}

func TestFmtVec(t *testing.T) {
	assert.Equal(t, "(1.000, -0.500, 0.250)", fmtVec(mgl32.Vec3{1, -0.5, 0.25}))
}
