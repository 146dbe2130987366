package client

import (
	"testing"

	"github.com/matryer/is"
)

func TestProjection_ConfirmReplacesProjectedValue(t *testing.T) {
	is := is.New(t)
	p := NewProjection()
	p.Seed("a", 2)

	is.Equal(p.Apply("a"), 3)
	is.Equal(p.Value("a"), 3)

	// the server may know about decrements from another session
	is.Equal(p.Confirm("a", 5), 5)
	is.Equal(p.Value("a"), 5)
	is.True(!p.Failed("a"))
}

func TestProjection_FailRollsBack(t *testing.T) {
	is := is.New(t)
	p := NewProjection()
	p.Seed("a", 2)

	p.Apply("a")
	is.Equal(p.Fail("a"), 2)
	is.True(p.Failed("a"))

	// a new attempt clears the failure mark
	p.Apply("a")
	is.True(!p.Failed("a"))
}

func TestProjection_OverlappingRequests(t *testing.T) {
	is := is.New(t)
	p := NewProjection()

	is.Equal(p.Apply("a"), 1)
	is.Equal(p.Apply("a"), 2)

	is.Equal(p.Confirm("a", 1), 2)
	is.Equal(p.Fail("a"), 1)
	is.Equal(p.Value("a"), 1)
}

func TestProjection_TasksAreIndependent(t *testing.T) {
	is := is.New(t)
	p := NewProjection()

	p.Apply("a")
	is.Equal(p.Value("b"), 0)
	p.Fail("b")
	is.Equal(p.Value("a"), 1)
}
