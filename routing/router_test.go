package routing_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/order-lifecycle-streams/routing"
)

func Test_NewRouter_When_ArgumentsAreInvalid(t *testing.T) {
	_, errShards := routing.NewRouter("X:orders", 0)
	_, errPrefix := routing.NewRouter("", 2)
	_, errPad := routing.NewRouter("X:orders", 2, routing.WithPadWidth(-1))

	assert.ErrorIs(t, errShards, routing.ErrInvalidShardCount)
	assert.ErrorIs(t, errPrefix, routing.ErrEmptyPrefix)
	assert.ErrorIs(t, errPad, routing.ErrInvalidPadWidth)
}

func Test_Route_When_EntityIsRouted_AllNamesShareTheShardTag(t *testing.T) {
	// setup
	router, err := routing.NewRouter("X:orders", 2)
	require.NoError(t, err)

	// act
	route := router.Route(17)

	// assert
	assert.Equal(t, 1, route.Shard)
	assert.Equal(t, "{1}", route.Tag)
	assert.Equal(t, "X:orders:00017{1}", route.Log)
	assert.Equal(t, "X:orders:00017{1}:stage", route.StageKey)
	assert.Equal(t, "X:orders:00017{1}:order", route.OrderKey)

	for _, name := range []string{route.Log, route.StageKey, route.OrderKey} {
		assert.True(t, strings.Contains(name, route.Tag), name)
	}
}

func Test_Route_When_CalledRepeatedly_ResultIsDeterministic(t *testing.T) {
	// setup
	router, err := routing.NewRouter("X:orders", 7)
	require.NoError(t, err)
	other, err := routing.NewRouter("X:orders", 7)
	require.NoError(t, err)

	for id := 0; id < 200; id++ {
		// act
		first := router.Route(id)
		second := other.Route(id)

		// assert
		assert.Equal(t, first, second)
		assert.Equal(t, id%7, first.Shard)
	}
}

func Test_ShardIndex_When_EntityIDIsNegative_ShardIsStillInRange(t *testing.T) {
	// setup
	router, err := routing.NewRouter("X:orders", 3)
	require.NoError(t, err)

	// act + assert
	assert.Equal(t, 2, router.ShardIndex(-1))
	assert.Equal(t, 0, router.ShardIndex(-3))
}

func Test_Partition_GroupsLogsByShard(t *testing.T) {
	// setup
	router, err := routing.NewRouter("X:orders", 2, routing.WithPadWidth(2))
	require.NoError(t, err)

	// act
	partitions := router.Partition([]int{3, 0, 1, 2, 2})

	// assert
	assert.Equal(t, map[int][]string{
		0: {"X:orders:00{0}", "X:orders:02{0}"},
		1: {"X:orders:01{1}", "X:orders:03{1}"},
	}, partitions)
}

func Test_RegionLogName_When_RegionIsExtractedAgain(t *testing.T) {
	// setup
	router, err := routing.NewRouter("X:orders", 2)
	require.NoError(t, err)

	// act
	name := router.RegionLogName("north", 3)
	region, ok := routing.RegionOf(name)
	_, plainOK := routing.RegionOf(router.LogName(3))

	// assert
	assert.Equal(t, "X:orders::north{1}", name)
	assert.True(t, ok)
	assert.Equal(t, "north", region)
	assert.False(t, plainOK)
}

func Test_NewRouter_When_RegionIsInvalid(t *testing.T) {
	for _, region := range []string{"", "no{rth", "a::b"} {
		// act
		_, err := routing.NewRouter("X:orders", 2, routing.WithRegions("south", region))

		// assert
		assert.ErrorIs(t, err, routing.ErrInvalidRegion, "region %q", region)
	}
}

func Test_Route_When_RegionsAreConfigured_EntitiesWriteToTheirRegionLog(t *testing.T) {
	// setup
	router, err := routing.NewRouter("X:orders", 2, routing.WithPadWidth(2), routing.WithRegions("north", "south"))
	require.NoError(t, err)

	// act
	route := router.Route(3)
	region, ok := router.Region(3)

	// assert
	assert.True(t, ok)
	assert.Equal(t, "south", region)
	assert.Equal(t, "X:orders::south{1}", route.Log)
	assert.Equal(t, "X:orders:03{1}:stage", route.StageKey)
	assert.Equal(t, "X:orders:03{1}:order", route.OrderKey)
	assert.Equal(t, route.Tag, routing.TagOf(route.Log))
}

func Test_Partition_When_RegionsAreConfigured_SharedLogsAreListedOnce(t *testing.T) {
	// setup
	router, err := routing.NewRouter("X:orders", 2, routing.WithRegions("north", "south"))
	require.NoError(t, err)

	// act
	partitions := router.Partition([]int{0, 1, 2, 3, 4, 5, 6, 7})

	// assert
	// even ids are north and shard 0, odd ids are south and shard 1
	assert.Equal(t, map[int][]string{
		0: {"X:orders::north{0}"},
		1: {"X:orders::south{1}"},
	}, partitions)
}

func Test_TagOf_When_NameHasNoTrailingTag(t *testing.T) {
	// act & assert
	assert.Equal(t, "{4}", routing.TagOf("X:orders:00004{4}"))
	assert.Equal(t, "{4}", routing.TagOf("X:order-updates{4}"))
	assert.Equal(t, "", routing.TagOf("X:orders"))
	assert.Equal(t, "", routing.TagOf("X:{1}:orders"))
	assert.Equal(t, "", routing.TagOf("X:orders}"))
}
