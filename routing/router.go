// Package routing maps entities onto a bounded set of shards and derives the names of their logs and state keys.
//
// Every name carries the shard tag "{n}" so that a hash-slot aware store places an entity's log, its state
// keys, and all other logs of the same shard on the same node. Readers can then fetch many logs of one shard
// in a single multi-log call.
package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	defaultPadWidth = 5
	stageSuffix     = ":stage"
	orderSuffix     = ":order"
	regionSeparator = "::"
)

var (
	// ErrInvalidShardCount is returned for shard counts below one.
	ErrInvalidShardCount = errors.New("shard count must be at least 1")

	// ErrEmptyPrefix is returned when the log prefix is empty.
	ErrEmptyPrefix = errors.New("log prefix must not be empty")

	// ErrInvalidPadWidth is returned for a negative padding width.
	ErrInvalidPadWidth = errors.New("pad width must not be negative")

	// ErrInvalidRegion is returned for empty region names or names containing a tag or separator.
	ErrInvalidRegion = errors.New("region must be a non-empty name without braces or \"::\"")
)

// Route bundles everything derived from one entity id.
type Route struct {
	EntityID int
	Shard    int
	Tag      string
	Log      string
	StageKey string
	OrderKey string
}

// Router is a pure, deterministic mapping from entity ids to shard-tagged names.
type Router struct {
	prefix   string
	shards   int
	padWidth int
	regions  []string
}

// Option defines a functional option for configuring Router.
type Option func(*Router) error

// WithPadWidth sets the zero-padding width of entity ids in names. Padding is cosmetic.
func WithPadWidth(width int) Option {
	return func(r *Router) error {
		if width < 0 {
			return ErrInvalidPadWidth
		}

		r.padWidth = width

		return nil
	}
}

// WithRegions assigns every entity to one of the regions, round robin by id. Entities then write to
// the region log of their shard, so all entities of one region and shard share a log and a document.
// State keys stay per entity.
func WithRegions(regions ...string) Option {
	return func(r *Router) error {
		for _, region := range regions {
			if region == "" || strings.ContainsAny(region, "{}") || strings.Contains(region, regionSeparator) {
				return errors.Join(ErrInvalidRegion, fmt.Errorf("region %q", region))
			}
		}

		r.regions = append([]string(nil), regions...)

		return nil
	}
}

// NewRouter creates a Router for the given log prefix and shard count.
func NewRouter(prefix string, shards int, options ...Option) (Router, error) {
	if prefix == "" {
		return Router{}, ErrEmptyPrefix
	}

	if shards < 1 {
		return Router{}, ErrInvalidShardCount
	}

	r := Router{prefix: prefix, shards: shards, padWidth: defaultPadWidth}
	for _, option := range options {
		if err := option(&r); err != nil {
			return Router{}, err
		}
	}

	return r, nil
}

// Shards returns the shard count.
func (r Router) Shards() int {
	return r.shards
}

// ShardIndex returns entityID mod shards, always in [0, shards).
func (r Router) ShardIndex(entityID int) int {
	return ((entityID % r.shards) + r.shards) % r.shards
}

// Tag returns the colocation tag of a shard.
func Tag(shard int) string {
	return fmt.Sprintf("{%d}", shard)
}

// LogName returns "<prefix>:<padded id>{shard}", or the entity's region log when regions are configured.
func (r Router) LogName(entityID int) string {
	if region, ok := r.Region(entityID); ok {
		return r.RegionLogName(region, r.ShardIndex(entityID))
	}

	return r.entityName(entityID)
}

// Region returns the region of the entity, or false when no regions are configured.
func (r Router) Region(entityID int) (string, bool) {
	if len(r.regions) == 0 {
		return "", false
	}

	n := len(r.regions)

	return r.regions[((entityID%n)+n)%n], true
}

// StageKey returns the key of the entity's lifecycle stage counter.
func (r Router) StageKey(entityID int) string {
	return r.entityName(entityID) + stageSuffix
}

// OrderKey returns the key of the entity's order sequence counter.
func (r Router) OrderKey(entityID int) string {
	return r.entityName(entityID) + orderSuffix
}

func (r Router) entityName(entityID int) string {
	return fmt.Sprintf("%s:%0*d%s", r.prefix, r.padWidth, entityID, Tag(r.ShardIndex(entityID)))
}

// Route derives all names for one entity.
func (r Router) Route(entityID int) Route {
	shard := r.ShardIndex(entityID)

	return Route{
		EntityID: entityID,
		Shard:    shard,
		Tag:      Tag(shard),
		Log:      r.LogName(entityID),
		StageKey: r.StageKey(entityID),
		OrderKey: r.OrderKey(entityID),
	}
}

// Partition groups the distinct log names of the given entities by shard, each group ordered by the
// lowest entity id writing to the log.
func (r Router) Partition(entityIDs []int) map[int][]string {
	ids := append([]int(nil), entityIDs...)
	sort.Ints(ids)

	partitions := make(map[int][]string)
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		log := r.LogName(id)
		if _, dup := seen[log]; dup {
			continue
		}

		seen[log] = struct{}{}
		shard := r.ShardIndex(id)
		partitions[shard] = append(partitions[shard], log)
	}

	return partitions
}

// RegionLogName returns "<prefix>::<region>{shard}", the log shape whose documents are grouped by region.
func (r Router) RegionLogName(region string, shard int) string {
	return r.prefix + regionSeparator + region + Tag(((shard%r.shards)+r.shards)%r.shards)
}

// RegionOf extracts the region from a region log name, without its shard tag.
func RegionOf(logName string) (string, bool) {
	_, region, found := strings.Cut(logName, regionSeparator)
	if !found || region == "" {
		return "", false
	}

	if open := strings.LastIndexByte(region, '{'); open > 0 && strings.HasSuffix(region, "}") {
		region = region[:open]
	}

	return region, true
}

// TagOf returns the trailing shard tag of a log or key name, or "" when the name carries none.
func TagOf(name string) string {
	open := strings.LastIndexByte(name, '{')
	if open < 0 || !strings.HasSuffix(name, "}") || strings.IndexByte(name[open:], '}') != len(name)-open-1 {
		return ""
	}

	return name[open:]
}
