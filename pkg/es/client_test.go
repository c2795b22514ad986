package es

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreToL2Distance(t *testing.T) {
	// ES 的 l2_norm 打分公式为 1 / (1 + d^2)，这里验证逆变换
	assert.InDelta(t, 0.0, scoreToL2Distance(1.0), 1e-9)
	assert.InDelta(t, 1.0, scoreToL2Distance(0.5), 1e-9)
	assert.InDelta(t, 2.0, scoreToL2Distance(0.2), 1e-9)
	assert.InDelta(t, 3.0, scoreToL2Distance(0.1), 1e-9)

	assert.True(t, math.IsInf(scoreToL2Distance(0), 1))
	assert.True(t, math.IsInf(scoreToL2Distance(-0.5), 1))
}
