package streams_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

func Test_ParsePath_When_PathUsesDotAndIndexSteps(t *testing.T) {
	// act
	path, err := streams.ParsePath("$.stage-entries[0].stage")

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"stage-entries", "0", "stage"}, path.Elements())
	assert.Equal(t, `$["stage-entries"][0].stage`, path.String())

	last, ok := path.Last()
	assert.True(t, ok)
	assert.Equal(t, "stage", last.Key)
}

func Test_ParsePath_When_PathUsesQuotedBrackets(t *testing.T) {
	for _, raw := range []string{`$['stage-entries'][2]`, `$["stage-entries"][2]`} {
		// act
		path, err := streams.ParsePath(raw)

		// assert
		require.NoError(t, err, raw)
		assert.Equal(t, []string{"stage-entries", "2"}, path.Elements(), raw)

		last, _ := path.Last()
		assert.True(t, last.IsIndex, raw)
		assert.Equal(t, 2, last.Index, raw)
	}
}

func Test_ParsePath_When_PathIsRoot(t *testing.T) {
	for _, raw := range []string{"$", ".", " $ "} {
		// act
		path, err := streams.ParsePath(raw)

		// assert
		require.NoError(t, err, raw)
		assert.True(t, path.IsRoot(), raw)
		assert.Equal(t, "$", path.String(), raw)
	}
}

func Test_ParsePath_When_PathIsMalformed(t *testing.T) {
	for _, raw := range []string{"", "stage", "$.", "$[", "$[x]", "$[-1]", "$['open", "$.*", "$..a"} {
		// act
		_, err := streams.ParsePath(raw)

		// assert
		assert.ErrorIs(t, err, streams.ErrInvalidPath, raw)
	}
}

func Test_Path_Builders_ProduceIndependentCopies(t *testing.T) {
	// arrange
	base := streams.KeyPath("stage-entries")

	// act
	first := base.Index(0)
	second := base.Index(1).Key("stage")
	parent, hasParent := second.Parent()

	// assert
	assert.Equal(t, []string{"stage-entries"}, base.Elements())
	assert.Equal(t, []string{"stage-entries", "0"}, first.Elements())
	assert.Equal(t, []string{"stage-entries", "1", "stage"}, second.Elements())
	assert.True(t, hasParent)
	assert.Equal(t, []string{"stage-entries", "1"}, parent.Elements())

	_, rootHasParent := streams.RootPath().Parent()
	assert.False(t, rootHasParent)
}

func Test_Path_String_RoundTripsThroughParsePath(t *testing.T) {
	// arrange
	original := streams.KeyPath("CustomerID", `odd "key"`).Index(3)

	// act
	parsed, err := streams.ParsePath(original.String())

	// assert
	require.NoError(t, err)
	assert.Equal(t, original.Elements(), parsed.Elements())
}
