/*
Copyright (C) 2024 The locator-ros-bridge Authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as
published by the Free Software Foundation, either version 3 of the
License, or (at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package session manages the authenticated relationship with the
// locator: login, periodic token refresh, the version compatibility
// gate and generic request/response calls against the locator's
// JSON-RPC configuration surface.
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sishi44/locator-ros-bridge/config"
	"github.com/sishi44/locator-ros-bridge/protocol"
)

// RefreshPeriod is the cadence the session token gets refreshed on.
// The locator tolerates brief delays, so a single missed refresh is
// not fatal.
const RefreshPeriod = 30 * time.Second

// sessionTimeout is the validity requested at login, leaving headroom
// over the refresh cadence.
const sessionTimeout = 120

// Client executes calls against the locator's session endpoint. All
// calls are serialized: the session protocol is not designed for
// concurrent multiplexed calls from one identity.
type Client struct {
	// BaseURL overrides the endpoint, for testing. Defaults to
	// http://host:8080.
	BaseURL string

	http *http.Client

	mutex     sync.Mutex
	user      string
	sessionID string
	issuedAt  time.Time
	rpcID     int
}

// New returns a client for the locator at host, using the fixed
// session port.
func New(host string) *Client {
	return &Client{
		BaseURL: fmt.Sprintf("http://%v:%d", host, protocol.SessionPort),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type rpcRequest struct {
	Version string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	ID      int         `json:"id"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC exchange. The caller must hold the mutex.
func (c *Client) call(op string, params map[string]interface{}) (map[string]interface{}, error) {
	c.rpcID++
	req := rpcRequest{
		Version: "2.0",
		Method:  op,
		ID:      c.rpcID,
		Params:  map[string]interface{}{"query": params},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("session: %v: marshal: %v", op, err)
	}

	resp, err := c.http.Post(c.BaseURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if rr.Error != nil {
		return nil, &CallError{Op: op, Code: rr.Error.Code, Message: rr.Error.Message}
	}

	result := make(map[string]interface{})
	if len(rr.Result) > 0 {
		if err := json.Unmarshal(rr.Result, &result); err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
	}

	return result, nil
}

// Call executes one request with the current session context attached.
// It fails with a CallError carrying the peer's error payload, or a
// TransportError if the connection could not be used at all. Callers
// decide whether an operation is safe to repeat; Call never retries.
func (c *Client) Call(op string, params map[string]interface{}) (map[string]interface{}, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.call(op, params)
}

// SessionQuery returns the base query carrying the session context,
// ready to be extended with call parameters.
func (c *Client) SessionQuery() map[string]interface{} {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return map[string]interface{}{"sessionId": c.sessionID}
}

// Login authenticates against the locator and stores the session
// token used by all subsequent calls.
func (c *Client) Login(user, password string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	result, err := c.call("sessionLogin", map[string]interface{}{
		"userName":       user,
		"password":       password,
		"sessionTimeout": sessionTimeout,
	})
	if err != nil {
		if ce, ok := err.(*CallError); ok {
			return &AuthenticationError{User: user, Reason: ce.Message}
		}
		return err
	}

	id, ok := result["sessionId"].(string)
	if !ok || id == "" {
		return &AuthenticationError{User: user, Reason: "no session id in response"}
	}

	c.user = user
	c.sessionID = id
	c.issuedAt = time.Now()

	return nil
}

// Refresh extends the validity of the session token.
func (c *Client) Refresh() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.call("sessionRefresh", map[string]interface{}{"sessionId": c.sessionID})
	if err != nil {
		return err
	}

	c.issuedAt = time.Now()
	return nil
}

// Logout destroys the session on the locator.
func (c *Client) Logout() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.sessionID == "" {
		return nil
	}

	_, err := c.call("sessionLogout", map[string]interface{}{"sessionId": c.sessionID})
	c.sessionID = ""

	return err
}

// ModuleVersions fetches the locator's module version table. The
// snapshot is used once, for the compatibility gate at startup.
func (c *Client) ModuleVersions() (map[string]protocol.ModuleVersion, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	result, err := c.call("aboutModulesList", map[string]interface{}{"sessionId": c.sessionID})
	if err != nil {
		return nil, err
	}

	raw, ok := result["modules"].([]interface{})
	if !ok {
		return nil, &TransportError{Op: "aboutModulesList", Err: fmt.Errorf("malformed module list")}
	}

	versions := make(map[string]protocol.ModuleVersion, len(raw))
	for _, x := range raw {
		m, ok := x.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		major, _ := m["majorVersion"].(float64)
		minor, _ := m["minorVersion"].(float64)
		if name == "" {
			continue
		}

		versions[name] = protocol.ModuleVersion{Major: int(major), Minor: int(minor)}
	}

	return versions, nil
}

type wireConfigEntry struct {
	Key   string      `json:"key"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// ConfigList fetches the locator's live configuration.
func (c *Client) ConfigList() (*config.Map, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	result, err := c.call("configList", map[string]interface{}{"sessionId": c.sessionID})
	if err != nil {
		return nil, err
	}

	raw, ok := result["configEntries"].([]interface{})
	if !ok {
		return nil, &TransportError{Op: "configList", Err: fmt.Errorf("malformed config list")}
	}

	m := config.NewMap()
	for _, x := range raw {
		e, ok := x.(map[string]interface{})
		if !ok {
			continue
		}
		key, _ := e["key"].(string)
		typ, _ := e["type"].(string)
		if key == "" {
			continue
		}

		entry, err := config.ParseEntry(key, typ, e["value"])
		if err != nil {
			return nil, fmt.Errorf("session: configList: %v", err)
		}
		m.Set(key, entry)
	}

	return m, nil
}

// SetConfigList writes a configuration map back to the locator.
func (c *Client) SetConfigList(m *config.Map) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entries := make([]wireConfigEntry, 0, m.Len())
	for _, key := range m.Keys() {
		e, _ := m.Get(key)
		entries = append(entries, wireConfigEntry{Key: key, Type: e.Type, Value: e.Value})
	}

	_, err := c.call("configSet", map[string]interface{}{
		"sessionId":     c.sessionID,
		"configEntries": entries,
	})

	return err
}
