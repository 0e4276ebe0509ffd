package app

import (
	"fmt"

	"github.com/dkeye/callrelay/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(conn core.ConnID) BackpressureAction
}

// SimplePolicy applies the same action to every slow connection.
type SimplePolicy struct {
	Action BackpressureAction
}

func (p SimplePolicy) OnBackPressure(core.ConnID) BackpressureAction {
	return p.Action
}

// ParsePolicy maps a config value ("drop" or "kick") to a policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{Action: KickMember}, nil
	case "drop":
		return SimplePolicy{Action: DropFrame}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
