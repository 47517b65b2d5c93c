package template

import (
	"github.com/stretchr/testify/require"
	"testing"
)

func TestResponseFormat(t *testing.T) {
	r := NewResponse()
	require.Equal(t, "OK: 'hello' (request #1)\n", r.Format("hello", 1))
	require.Equal(t, "OK: '' (request #42)\n", r.Format("", 42))
	// tags inside client text are not expanded again
	require.Equal(t, "OK: '[[count]]' (request #7)\n", r.Format("[[count]]", 7))
}

func TestResponseUnknownTagRendersEmpty(t *testing.T) {
	r := newResponse("[[count]]:[[text]]:[[missing]]|")
	require.Equal(t, "3:hi:|", r.Format("hi", 3))
}
