// Package terminal abstracts the MetaTrader 5 terminal binding used by the
// login gateway.
package terminal

import (
	"context"
	"errors"
	"fmt"

	"github.com/swoga/mt5-worker/config"
	"github.com/swoga/mt5-worker/model"
	"go.uber.org/zap"
)

// Name is how the binding is referred to in results returned to callers.
const Name = "MetaTrader5"

var ErrNoDriver = errors.New("no terminal driver configured")

// Terminal is the process-wide terminal binding. Only one session, from a
// successful Initialize to the matching Shutdown, may be active at a time.
type Terminal interface {
	Initialize(ctx context.Context) bool
	Login(ctx context.Context, login int64, password string, server string) bool
	// AccountInfo returns nil when the terminal has no account record.
	AccountInfo(ctx context.Context) (model.AccountInfo, error)
	Shutdown(ctx context.Context)
}

// Binding is the outcome of loading the terminal binding: either a usable
// Terminal or the reason it is unavailable.
type Binding struct {
	Terminal Terminal
	Err      error
}

func Available(t Terminal) Binding {
	return Binding{Terminal: t}
}

func Unavailable(err error) Binding {
	return Binding{Err: err}
}

func (b Binding) Get() (Terminal, error) {
	if b.Err != nil {
		return nil, b.Err
	}
	if b.Terminal == nil {
		return nil, ErrNoDriver
	}
	return b.Terminal, nil
}

// Load resolves the configured driver. It never fails; an unusable
// configuration yields an unavailable Binding.
func Load(log *zap.Logger, c config.Terminal) Binding {
	switch c.Driver {
	case "", "none":
		return Unavailable(ErrNoDriver)
	case "bridge":
		if c.Address == "" {
			return Unavailable(errors.New("bridge address not configured"))
		}
		return Available(NewBridge(log, c.Address, c.TimeoutDuration()))
	default:
		return Unavailable(fmt.Errorf("unknown terminal driver %q", c.Driver))
	}
}
