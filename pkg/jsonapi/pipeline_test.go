package jsonapi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_RunsInDependencyOrder(t *testing.T) {
	var order []string
	p := NewPipeline()
	p.Register("c", 0, func(rc *RequestContext) error { order = append(order, "c"); return nil }, "b")
	p.Register("a", 0, func(rc *RequestContext) error { order = append(order, "a"); return nil })
	p.Register("b", 0, func(rc *RequestContext) error { order = append(order, "b"); return nil }, "a")

	require.NoError(t, p.Compile())
	require.NoError(t, p.Run(&RequestContext{}))

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestPipeline_OrderTiebreak(t *testing.T) {
	var order []string
	p := NewPipeline()
	p.Register("second", 20, func(rc *RequestContext) error { order = append(order, "second"); return nil })
	p.Register("first", 10, func(rc *RequestContext) error { order = append(order, "first"); return nil })

	require.NoError(t, p.Compile())
	require.NoError(t, p.Run(&RequestContext{}))

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPipeline_StopsOnError(t *testing.T) {
	var ran []string
	p := NewPipeline()
	p.Register("a", 0, func(rc *RequestContext) error { ran = append(ran, "a"); return errors.New("boom") })
	p.Register("b", 10, func(rc *RequestContext) error { ran = append(ran, "b"); return nil })

	require.NoError(t, p.Compile())
	err := p.Run(&RequestContext{})

	require.Error(t, err)
	assert.Equal(t, []string{"a"}, ran)
}

func TestPipeline_RejectsCycle(t *testing.T) {
	p := NewPipeline()
	p.Register("a", 0, func(rc *RequestContext) error { return nil }, "b")
	p.Register("b", 0, func(rc *RequestContext) error { return nil }, "a")

	err := p.Compile()
	require.Error(t, err)
}

func TestPipeline_RejectsUnknownDependency(t *testing.T) {
	p := NewPipeline()
	p.Register("a", 0, func(rc *RequestContext) error { return nil }, "ghost")

	err := p.Compile()
	require.Error(t, err)
}

func TestPipeline_RejectsDuplicateName(t *testing.T) {
	p := NewPipeline()
	p.Register("a", 0, func(rc *RequestContext) error { return nil })
	p.Register("a", 0, func(rc *RequestContext) error { return nil })

	err := p.Compile()
	require.Error(t, err)
}
