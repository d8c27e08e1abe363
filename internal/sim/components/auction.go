package components

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"foundation.ai/internal/sim/agents"
)

const AuctionName = "ContinuousDoubleAuction"

// ContinuousDoubleAuction gives embodied agents one bid head and one ask head
// per resource, each choosing a price level in 1..MaxBidAsk.
type ContinuousDoubleAuction struct {
	MaxBidAsk    int      `yaml:"max_bid_ask"`
	MaxNumOrders int      `yaml:"max_num_orders"`
	OrderLabor   float64  `yaml:"order_labor"`
	Resources    []string `yaml:"resources"`
}

func NewContinuousDoubleAuction(params *yaml.Node) (agents.Component, error) {
	c := &ContinuousDoubleAuction{
		MaxBidAsk:    10,
		MaxNumOrders: 5,
		OrderLabor:   0.25,
		Resources:    []string{"Wood", "Stone"},
	}
	if err := decodeParams(params, c); err != nil {
		return nil, err
	}
	if c.MaxBidAsk < 1 {
		return nil, fmt.Errorf("max_bid_ask must be >= 1")
	}
	if c.MaxNumOrders < 1 {
		return nil, fmt.Errorf("max_num_orders must be >= 1")
	}
	if len(c.Resources) == 0 {
		return nil, fmt.Errorf("resources must not be empty")
	}
	return c, nil
}

func (c *ContinuousDoubleAuction) Name() string { return AuctionName }

func (c *ContinuousDoubleAuction) Contribution(q agents.Query) agents.Contribution {
	if !q.Kind.Embodied() {
		return nil
	}
	out := make(agents.Grouped, 0, 2*len(c.Resources))
	for _, r := range c.Resources {
		out = append(out,
			agents.SubAction{Name: "Buy_" + r, N: c.MaxBidAsk + 1},
			agents.SubAction{Name: "Sell_" + r, N: c.MaxBidAsk + 1},
		)
	}
	return out
}

func (c *ContinuousDoubleAuction) StateFields(agents.Kind) []agents.Field { return nil }
