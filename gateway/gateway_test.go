package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swoga/mt5-worker/collector"
	"github.com/swoga/mt5-worker/model"
	"github.com/swoga/mt5-worker/terminal"
	"go.uber.org/zap/zaptest"
)

type fakeTerminal struct {
	initOK   bool
	loginOK  bool
	info     model.AccountInfo
	infoErr  error
	infoHook func()

	calls     []string
	loginID   int64
	password  string
	server    string
	shutdowns int
}

func (f *fakeTerminal) Initialize(ctx context.Context) bool {
	f.calls = append(f.calls, "initialize")
	return f.initOK
}

func (f *fakeTerminal) Login(ctx context.Context, login int64, password string, server string) bool {
	f.calls = append(f.calls, "login")
	f.loginID, f.password, f.server = login, password, server
	return f.loginOK
}

func (f *fakeTerminal) AccountInfo(ctx context.Context) (model.AccountInfo, error) {
	f.calls = append(f.calls, "account_info")
	if f.infoHook != nil {
		f.infoHook()
	}
	return f.info, f.infoErr
}

func (f *fakeTerminal) Shutdown(ctx context.Context) {
	f.calls = append(f.calls, "shutdown")
	f.shutdowns++
}

func newGateway(t *testing.T, binding terminal.Binding) *Gateway {
	return New(zaptest.NewLogger(t), binding, collector.New(prometheus.NewRegistry()))
}

var demoRequest = model.LoginRequest{Server: "Demo", Login: "12345", Password: "pw"}

func TestLoginSuccess(t *testing.T) {
	term := &fakeTerminal{initOK: true, loginOK: true, info: model.AccountInfo{"balance": 1000, "currency": "USD"}}
	g := newGateway(t, terminal.Available(term))

	result, err := g.Login(context.Background(), demoRequest)
	require.NoError(t, err)
	assert.Equal(t, model.LoginResult{OK: true, AccountInfo: model.AccountInfo{"balance": 1000, "currency": "USD"}}, result)
	assert.Equal(t, []string{"initialize", "login", "account_info", "shutdown"}, term.calls)
	assert.Equal(t, int64(12345), term.loginID)
	assert.Equal(t, "pw", term.password)
	assert.Equal(t, "Demo", term.server)
	assert.Equal(t, 1, term.shutdowns)
}

func TestLoginNoAccountInfo(t *testing.T) {
	term := &fakeTerminal{initOK: true, loginOK: true}
	g := newGateway(t, terminal.Available(term))

	result, err := g.Login(context.Background(), demoRequest)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.NotNil(t, result.AccountInfo)
	assert.Empty(t, result.AccountInfo)
	assert.Equal(t, 1, term.shutdowns)
}

func TestLoginUnavailable(t *testing.T) {
	g := newGateway(t, terminal.Unavailable(errors.New("no bridge")))

	result, err := g.Login(context.Background(), demoRequest)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, "MetaTrader5 not available: no bridge", result.Message)
	assert.Nil(t, result.AccountInfo)
}

func TestLoginInitializeFailed(t *testing.T) {
	term := &fakeTerminal{initOK: false, loginOK: true}
	g := newGateway(t, terminal.Available(term))

	result, err := g.Login(context.Background(), demoRequest)
	require.NoError(t, err)
	assert.Equal(t, model.Failure("initialize failed"), result)
	assert.Equal(t, []string{"initialize"}, term.calls)
	assert.Equal(t, 0, term.shutdowns)
}

func TestLoginFailed(t *testing.T) {
	term := &fakeTerminal{initOK: true, loginOK: false}
	g := newGateway(t, terminal.Available(term))

	result, err := g.Login(context.Background(), demoRequest)
	require.NoError(t, err)
	assert.Equal(t, model.Failure("login failed"), result)
	assert.Equal(t, []string{"initialize", "login", "shutdown"}, term.calls)
	assert.Equal(t, 1, term.shutdowns)
}

func TestLoginAccountInfoError(t *testing.T) {
	term := &fakeTerminal{initOK: true, loginOK: true, infoErr: errors.New("bridge gone")}
	g := newGateway(t, terminal.Available(term))

	_, err := g.Login(context.Background(), demoRequest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bridge gone")
	assert.Equal(t, 1, term.shutdowns)
}

func TestLoginAccountInfoPanic(t *testing.T) {
	term := &fakeTerminal{initOK: true, loginOK: true, infoHook: func() { panic("terminal crashed") }}
	g := newGateway(t, terminal.Available(term))

	assert.Panics(t, func() {
		_, _ = g.Login(context.Background(), demoRequest)
	})
	assert.Equal(t, 1, term.shutdowns)

	// the lock must have been released
	term.infoHook = nil
	_, err := g.Login(context.Background(), demoRequest)
	assert.NoError(t, err)
}

func TestLoginInvalidID(t *testing.T) {
	term := &fakeTerminal{initOK: true, loginOK: true}
	g := newGateway(t, terminal.Available(term))

	for _, login := range []string{"abc", "", "12.5", "99999999999999999999"} {
		_, err := g.Login(context.Background(), model.LoginRequest{Server: "Demo", Login: login, Password: "pw"})
		assert.ErrorIs(t, err, ErrInvalidLogin, login)
	}
	assert.Empty(t, term.calls)
}

func TestParseLogin(t *testing.T) {
	id, err := ParseLogin(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ParseLogin("4x2")
	assert.EqualError(t, err, `login must be an integer: "4x2"`)
}

type slowTerminal struct {
	active  atomic.Int32
	overlap atomic.Bool
}

func (s *slowTerminal) Initialize(ctx context.Context) bool {
	if s.active.Add(1) > 1 {
		s.overlap.Store(true)
	}
	return true
}

func (s *slowTerminal) Login(ctx context.Context, login int64, password string, server string) bool {
	time.Sleep(time.Millisecond)
	return true
}

func (s *slowTerminal) AccountInfo(ctx context.Context) (model.AccountInfo, error) {
	return nil, nil
}

func (s *slowTerminal) Shutdown(ctx context.Context) {
	s.active.Add(-1)
}

func TestLoginSerializesSessions(t *testing.T) {
	term := &slowTerminal{}
	g := newGateway(t, terminal.Available(term))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Login(context.Background(), demoRequest)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, term.overlap.Load())
}

func TestSetBinding(t *testing.T) {
	g := newGateway(t, terminal.Unavailable(terminal.ErrNoDriver))
	assert.ErrorIs(t, g.Available(), terminal.ErrNoDriver)

	g.SetBinding(terminal.Available(&fakeTerminal{}))
	assert.NoError(t, g.Available())
}
