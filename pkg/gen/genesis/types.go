package genesis

import (
	"encoding/json"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/network"
)

// ActorType selects the code of a genesis actor.
type ActorType string

const (
	TAccount ActorType = "account"
	TChaos   ActorType = "chaos"
)

// Actor is one funded actor of the genesis state.
type Actor struct {
	Type    ActorType
	Balance abi.TokenAmount
	// Owner is the key address of an account. Chaos actors may leave it empty.
	Owner address.Address
}

// Template describes a genesis state.
type Template struct {
	NetworkVersion network.Version
	Accounts       []Actor
	// RewardBalance funds the reward actor.
	RewardBalance abi.TokenAmount
}

// ParseTemplate decodes a JSON template.
func ParseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
