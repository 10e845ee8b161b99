// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tinyfnn/tensor"
)

func TestViewOverCallerBuffer(t *testing.T) {
	buf := make([]byte, 16)
	v, err := tensor.View(tensor.Shape{2, 2}, tensor.Float32, buf)
	require.NoError(t, err)
	v.Float32()[3] = 1

	again, err := tensor.View(tensor.Shape{4}, tensor.Float32, buf)
	require.NoError(t, err)
	assert.Equal(t, float32(1), again.Float32()[3])
}

func TestErrorsMatchKinds(t *testing.T) {
	_, err := tensor.View(tensor.Shape{4}, tensor.Float32, make([]byte, 8))
	require.Error(t, err)
	assert.True(t, errors.Is(err, tensor.ErrBufferTooSmall))
	assert.Equal(t, tensor.BufferTooSmall, tensor.KindOf(err))

	var e *tensor.Error
	assert.True(t, errors.As(err, &e))
}

func TestSchemeByName(t *testing.T) {
	s, err := tensor.SchemeByName("symmetric")
	require.NoError(t, err)
	assert.Equal(t, tensor.Symmetric{}, s)

	_, err = tensor.SchemeByName("per-channel")
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConfiguration)
}
