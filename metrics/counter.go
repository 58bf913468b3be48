package metrics

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var log = logging.Logger("metrics")

// Tag keys the execution counters are broken down by.
var (
	ExitCodeKey  = tag.MustNewKey("exit_code")
	ApplyKindKey = tag.MustNewKey("apply_kind")
)

// Int64Counter counts events of message execution, optionally broken down by tag keys.
type Int64Counter struct {
	measure *stats.Int64Measure
	view    *view.View
}

// NewInt64Counter registers a dimensionless sum view named name. Counters are package level
// variables, so a name registered twice panics at init.
func NewInt64Counter(name, desc string, keys ...tag.Key) *Int64Counter {
	log.Debugw("registering counter", "name", name, "tags", len(keys))
	m := stats.Int64(name, desc, stats.UnitDimensionless)
	v := &view.View{
		Name:        name,
		Measure:     m,
		Description: desc,
		TagKeys:     keys,
		Aggregation: view.Sum(),
	}
	mustRegister(v)
	return &Int64Counter{measure: m, view: v}
}

// Inc adds v to the counter.
func (c *Int64Counter) Inc(ctx context.Context, v int64) {
	stats.Record(ctx, c.measure.M(v))
}

// IncWith adds v to the counter under the given tags. Tags whose key the counter was not
// created with are dropped by the view.
func (c *Int64Counter) IncWith(ctx context.Context, v int64, mutators ...tag.Mutator) {
	if err := stats.RecordWithTags(ctx, mutators, c.measure.M(v)); err != nil {
		log.Warnw("recording tagged measure", "name", c.view.Name, "error", err)
	}
}

// Name is the name of the view the counter is exported under.
func (c *Int64Counter) Name() string {
	return c.view.Name
}

func mustRegister(v *view.View) {
	if err := view.Register(v); err != nil {
		panic(err)
	}
}
