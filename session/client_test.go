package session_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sishi44/locator-ros-bridge/session"
)

// fakeLocator serves a minimal slice of the locator's JSON-RPC
// surface.
type fakeLocator struct {
	password string
	sessions map[string]bool
	refreshs int
}

type rpcRequest struct {
	Method string `json:"method"`
	ID     int    `json:"id"`
	Params struct {
		Query map[string]interface{} `json:"query"`
	} `json:"params"`
}

func (f *fakeLocator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reply := func(result interface{}) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}
	replyErr := func(code int, msg string) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": code, "message": msg},
		})
	}

	q := req.Params.Query
	switch req.Method {
	case "sessionLogin":
		if q["password"] != f.password {
			replyErr(-32000, "invalid credentials")
			return
		}
		if f.sessions == nil {
			f.sessions = make(map[string]bool)
		}
		f.sessions["session-1"] = true
		reply(map[string]interface{}{"sessionId": "session-1"})

	case "sessionRefresh":
		id, _ := q["sessionId"].(string)
		if !f.sessions[id] {
			replyErr(-32001, "unknown session")
			return
		}
		f.refreshs++
		reply(map[string]interface{}{})

	case "sessionLogout":
		id, _ := q["sessionId"].(string)
		delete(f.sessions, id)
		reply(map[string]interface{}{})

	case "aboutModulesList":
		reply(map[string]interface{}{
			"modules": []map[string]interface{}{
				{"name": "Session", "majorVersion": 3, "minorVersion": 1},
				{"name": "Config", "majorVersion": 5, "minorVersion": 2},
			},
		})

	case "configList":
		reply(map[string]interface{}{
			"configEntries": []map[string]interface{}{
				{"key": "ClientSensor.laser.type", "type": "string", "value": "simple"},
				{"key": "ClientSensor.enableLaser2", "type": "bool", "value": false},
			},
		})

	case "configSet":
		reply(map[string]interface{}{})

	default:
		replyErr(-32601, "method not found")
	}
}

func newClient(t *testing.T) (*session.Client, *fakeLocator) {
	t.Helper()

	f := &fakeLocator{password: "secret"}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c := session.New("localhost")
	c.BaseURL = srv.URL

	return c, f
}

func TestLogin(t *testing.T) {
	c, _ := newClient(t)

	if err := c.Login("admin", "secret"); err != nil {
		t.Fatal(err)
	}

	q := c.SessionQuery()
	if q["sessionId"] != "session-1" {
		t.Fatalf("wanted session-1, found %v", q["sessionId"])
	}
}

func TestLoginRejected(t *testing.T) {
	c, _ := newClient(t)

	err := c.Login("admin", "wrong")
	if err == nil {
		t.Fatal("login succeeded with wrong credentials")
	}

	var authErr *session.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("wanted AuthenticationError, found %T: %v", err, err)
	}
}

func TestRefresh(t *testing.T) {
	c, f := newClient(t)

	if err := c.Login("admin", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := c.Refresh(); err != nil {
		t.Fatal(err)
	}
	if f.refreshs != 1 {
		t.Fatalf("wanted 1 refresh, found %v", f.refreshs)
	}
}

func TestLogout(t *testing.T) {
	c, f := newClient(t)

	if err := c.Login("admin", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := c.Logout(); err != nil {
		t.Fatal(err)
	}
	if len(f.sessions) != 0 {
		t.Fatalf("session still alive after logout")
	}

	// refresh on a dead session surfaces the peer's error
	err := c.Refresh()
	var callErr *session.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("wanted CallError, found %T: %v", err, err)
	}
}

func TestModuleVersions(t *testing.T) {
	c, _ := newClient(t)

	if err := c.Login("admin", "secret"); err != nil {
		t.Fatal(err)
	}

	versions, err := c.ModuleVersions()
	if err != nil {
		t.Fatal(err)
	}

	v, ok := versions["Session"]
	if !ok {
		t.Fatal("Session module missing")
	}
	if v.Major != 3 || v.Minor != 1 {
		t.Fatalf("wanted 3.1, found %v", v)
	}
}

func TestConfigList(t *testing.T) {
	c, _ := newClient(t)

	if err := c.Login("admin", "secret"); err != nil {
		t.Fatal(err)
	}

	m, err := c.ConfigList()
	if err != nil {
		t.Fatal(err)
	}

	if got := m.StringOf("ClientSensor.laser.type"); got != "simple" {
		t.Fatalf("wanted simple, found %q", got)
	}
	if got := m.StringOf("ClientSensor.enableLaser2"); got != "false" {
		t.Fatalf("wanted false, found %q", got)
	}
	if err := c.SetConfigList(m); err != nil {
		t.Fatal(err)
	}
}

func TestCallTransportError(t *testing.T) {
	c := session.New("localhost")
	// nothing listens here
	c.BaseURL = "http://127.0.0.1:1"

	_, err := c.Call("clientMapList", map[string]interface{}{})
	var te *session.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("wanted TransportError, found %T: %v", err, err)
	}
}
