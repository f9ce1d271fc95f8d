// Package gateway runs MetaTrader 5 logins against the terminal binding.
//
// Every login opens its own terminal session (initialize, login,
// account_info, shutdown). The binding is a process-wide singleton, so
// sessions are serialized: a request waits until the previous session has
// been shut down.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/swoga/mt5-worker/collector"
	"github.com/swoga/mt5-worker/model"
	"github.com/swoga/mt5-worker/terminal"
	"go.uber.org/zap"
)

const (
	MessageInitializeFailed = "initialize failed"
	MessageLoginFailed      = "login failed"
)

var ErrInvalidLogin = errors.New("login must be an integer")

type Gateway struct {
	// mu is held for the whole terminal session.
	mu      sync.Mutex
	binding atomic.Pointer[terminal.Binding]
	metrics *collector.Metrics
	log     *zap.Logger
}

func New(log *zap.Logger, binding terminal.Binding, metrics *collector.Metrics) *Gateway {
	g := &Gateway{
		metrics: metrics,
		log:     log,
	}
	g.binding.Store(&binding)
	return g
}

// SetBinding replaces the terminal binding. A running session keeps the
// terminal it started with; the next session uses the new binding.
func (g *Gateway) SetBinding(binding terminal.Binding) {
	g.binding.Store(&binding)
}

// Available reports whether the binding can be used, and why not. It does
// not wait for a running session.
func (g *Gateway) Available() error {
	_, err := g.binding.Load().Get()
	return err
}

// RejectInvalid records a request that was refused before reaching the
// terminal.
func (g *Gateway) RejectInvalid() {
	g.metrics.ObserveLogin(collector.ResultInvalid)
}

// ParseLogin converts the account number sent by the client.
func ParseLogin(login string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(login), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogin, login)
	}
	return id, nil
}

// Login validates the request and runs one terminal session for it.
// Expected failures are reported in the result; an error means the request
// was invalid (ErrInvalidLogin) or the terminal failed unexpectedly.
func (g *Gateway) Login(ctx context.Context, req model.LoginRequest) (model.LoginResult, error) {
	id, err := ParseLogin(req.Login)
	if err != nil {
		g.RejectInvalid()
		return model.LoginResult{}, err
	}

	log := g.log.With(zap.String("server", req.Server), zap.Int64("login", id))

	g.mu.Lock()
	defer g.mu.Unlock()

	term, err := g.binding.Load().Get()
	if err != nil {
		log.Warn("terminal binding not available", zap.Error(err))
		g.metrics.ObserveLogin(collector.ResultUnavailable)
		return model.Failure(fmt.Sprintf("%s not available: %s", terminal.Name, err)), nil
	}

	result, outcome, err := g.session(ctx, log, term, id, req)
	g.metrics.ObserveLogin(outcome)
	return result, err
}

func (g *Gateway) session(ctx context.Context, log *zap.Logger, term terminal.Terminal, id int64, req model.LoginRequest) (model.LoginResult, string, error) {
	done := g.metrics.TimeCall("initialize")
	ok := term.Initialize(ctx)
	done()
	if !ok {
		log.Warn("terminal initialize failed")
		return model.Failure(MessageInitializeFailed), collector.ResultInitFailed, nil
	}

	g.metrics.SessionOpened()
	defer func() {
		done := g.metrics.TimeCall("shutdown")
		term.Shutdown(context.WithoutCancel(ctx))
		done()
		g.metrics.SessionClosed()
		log.Debug("terminal session closed")
	}()

	done = g.metrics.TimeCall("login")
	ok = term.Login(ctx, id, req.Password, req.Server)
	done()
	if !ok {
		log.Info("terminal login failed")
		return model.Failure(MessageLoginFailed), collector.ResultLoginFailed, nil
	}

	done = g.metrics.TimeCall("account_info")
	info, err := term.AccountInfo(ctx)
	done()
	if err != nil {
		log.Error("error querying account info", zap.Error(err))
		return model.LoginResult{}, collector.ResultError, fmt.Errorf("error querying account info: %w", err)
	}
	if info == nil {
		info = model.AccountInfo{}
	}

	log.Info("terminal login succeeded")
	return model.LoginResult{OK: true, AccountInfo: info}, collector.ResultSuccess, nil
}
