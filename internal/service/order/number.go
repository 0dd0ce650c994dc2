package order

import (
	"fmt"
	"time"

	"marketplace/pkg/snowflake"
)

// NumberGenerator issues order ids and human readable order numbers.
// The number embeds the snowflake id, so numbers never collide across
// replicas with distinct node ids.
type NumberGenerator struct {
	ids    *snowflake.IDGenerator
	prefix string
	now    func() time.Time
}

// NewNumberGenerator creates a generator for one node
func NewNumberGenerator(nodeID int64, prefix string) (*NumberGenerator, error) {
	ids, err := snowflake.NewIDGenerator(nodeID)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "MK"
	}
	return &NumberGenerator{ids: ids, prefix: prefix, now: time.Now}, nil
}

// Next returns a new order id and its number, formatted prefix-yyyymmdd-id
func (g *NumberGenerator) Next() (uint64, string) {
	id := g.ids.NextID()
	return uint64(id), fmt.Sprintf("%s-%s-%d", g.prefix, g.now().UTC().Format("20060102"), id)
}
