package httpmiddleware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenBucketExhausts(t *testing.T) {
	l := NewSimpleTokenBucket(3, 3)

	require.True(t, l.allow("1.2.3.4"))
	require.True(t, l.allow("1.2.3.4"))
	require.True(t, l.allow("1.2.3.4"))
	require.False(t, l.allow("1.2.3.4"))

	// Other clients are unaffected.
	require.True(t, l.allow("5.6.7.8"))
}

func TestTokenBucketDefaultsCapacity(t *testing.T) {
	l := NewSimpleTokenBucket(0, 10)
	require.Equal(t, 10, l.capacity)
}
