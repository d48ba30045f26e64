package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekisa-team/dlrshim/internal/config"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	for _, id := range []string{"c", "a", "b"} {
		reg.Set(NewInstance(id, config.ModelConfig{}))
	}

	got, ok := reg.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, ModelStatusUnloaded, got.Status())

	var ids []string
	for _, inst := range reg.List() {
		ids = append(ids, inst.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	reg.Delete("b")
	_, ok = reg.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, reg.Len())

	assert.NoError(t, reg.Close())
}
