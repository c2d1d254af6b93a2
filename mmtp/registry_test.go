// SPDX-License-Identifier: MIT

package mmtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryFlowForCreatesOnce(t *testing.T) {
	r := NewRegistry(nil)

	a := r.FlowFor(7)
	b := r.FlowFor(7)
	assert.Same(t, a, b)

	_, ok := r.Flow(9)
	assert.False(t, ok)

	r.FlowFor(9)
	_, ok = r.Flow(9)
	assert.True(t, ok)
}
