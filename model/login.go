package model

import "encoding/json"

type LoginRequest struct {
	Server   string
	Login    string
	Password string
}

// LoginBody is the JSON body of a login request. Every field must be
// present; an explicit empty string is accepted.
type LoginBody struct {
	Server   *string `json:"server" binding:"required"`
	Login    *string `json:"login" binding:"required"`
	Password *string `json:"password" binding:"required"`
}

func (b LoginBody) Request() LoginRequest {
	var r LoginRequest
	if b.Server != nil {
		r.Server = *b.Server
	}
	if b.Login != nil {
		r.Login = *b.Login
	}
	if b.Password != nil {
		r.Password = *b.Password
	}
	return r
}

// AccountInfo holds the account record as reported by the terminal.
// Numbers are kept as json.Number so they are relayed verbatim.
type AccountInfo map[string]any

type LoginResult struct {
	OK          bool        `json:"ok"`
	Message     string      `json:"message,omitempty"`
	AccountInfo AccountInfo `json:"account_info"`
}

// MarshalJSON omits account_info when it is nil but keeps an empty record.
func (r LoginResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		OK          bool         `json:"ok"`
		Message     string       `json:"message,omitempty"`
		AccountInfo *AccountInfo `json:"account_info,omitempty"`
	}
	w := wire{OK: r.OK, Message: r.Message}
	if r.AccountInfo != nil {
		w.AccountInfo = &r.AccountInfo
	}
	return json.Marshal(w)
}

func Failure(message string) LoginResult {
	return LoginResult{OK: false, Message: message}
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
