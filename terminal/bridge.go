package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/swoga/mt5-worker/model"
	"go.uber.org/zap"
)

// Bridge talks to the terminal bridge process running next to the
// MetaTrader 5 terminal, using JSON over HTTP.
type Bridge struct {
	address string
	client  *http.Client
	log     *zap.Logger
}

func NewBridge(log *zap.Logger, address string, timeout time.Duration) *Bridge {
	return &Bridge{
		address: address,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
			},
			Timeout: timeout,
		},
		log: log.With(zap.String("bridge", address)),
	}
}

type okResponse struct {
	OK bool `json:"ok"`
}

type loginRequest struct {
	Login    int64  `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

type accountInfoResponse struct {
	AccountInfo model.AccountInfo `json:"account_info"`
}

func (b *Bridge) request(ctx context.Context, method string, path string, data interface{}, out interface{}) error {
	var buf io.Reader
	if data != nil {
		body, err := json.Marshal(data)
		if err != nil {
			return err
		}
		buf = bytes.NewBuffer(body)
	}

	url := fmt.Sprintf("http://%s/%s", b.address, path)
	b.log.Debug("send request", zap.String("method", method), zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, method, url, buf)
	if err != nil {
		return err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		b.log.Error("error from bridge", zap.Int("status", res.StatusCode), zap.String("response", string(body)))
		return fmt.Errorf("%s %s: unexpected status %d", method, path, res.StatusCode)
	}

	if out == nil {
		return nil
	}

	decoder := json.NewDecoder(res.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("%s %s: error decoding response: %w", method, path, err)
	}

	b.log.Debug("response", zap.Any("data", out))
	return nil
}

func (b *Bridge) Initialize(ctx context.Context) bool {
	var res okResponse
	if err := b.request(ctx, http.MethodPost, "initialize", nil, &res); err != nil {
		b.log.Error("initialize request failed", zap.Error(err))
		return false
	}
	return res.OK
}

func (b *Bridge) Login(ctx context.Context, login int64, password string, server string) bool {
	var res okResponse
	req := loginRequest{Login: login, Password: password, Server: server}
	if err := b.request(ctx, http.MethodPost, "login", req, &res); err != nil {
		b.log.Error("login request failed", zap.Error(err))
		return false
	}
	return res.OK
}

func (b *Bridge) AccountInfo(ctx context.Context) (model.AccountInfo, error) {
	var res accountInfoResponse
	if err := b.request(ctx, http.MethodGet, "account_info", nil, &res); err != nil {
		return nil, err
	}
	return res.AccountInfo, nil
}

func (b *Bridge) Shutdown(ctx context.Context) {
	if err := b.request(ctx, http.MethodPost, "shutdown", nil, nil); err != nil {
		b.log.Error("shutdown request failed", zap.Error(err))
	}
}
