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

// Package gateway exposes the bridge's control operations over HTTP
// and streams localization poses over websocket connections.
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sishi44/locator-ros-bridge/bridge"
	"github.com/sishi44/locator-ros-bridge/datagram"
	"github.com/sishi44/locator-ros-bridge/log"
	"github.com/sishi44/locator-ros-bridge/protocol"
)

// Gateway serves the bridge's HTTP surface.
type Gateway struct {
	bridge *bridge.Bridge
	router *mux.Router
}

// New returns a gateway exposing b.
func New(b *bridge.Bridge) *Gateway {
	g := &Gateway{
		bridge: b,
		router: mux.NewRouter(),
	}

	g.router.HandleFunc("/status", g.handleStatus).Methods("GET")
	g.router.HandleFunc("/config", g.handleConfig).Methods("GET")
	g.router.HandleFunc("/maps", g.handleMaps).Methods("GET")
	g.router.HandleFunc("/recording/start", g.handleRecordingStart).Methods("POST")
	g.router.HandleFunc("/recording/stop", g.handleRecordingStop).Methods("POST")
	g.router.HandleFunc("/map/start", g.handleMapStart).Methods("POST")
	g.router.HandleFunc("/map/stop", g.handleMapStop).Methods("POST")
	g.router.HandleFunc("/map/send", g.handleMapSend).Methods("POST")
	g.router.HandleFunc("/map/set", g.handleMapSet).Methods("POST")
	g.router.HandleFunc("/localization/start", g.handleLocalizationStart).Methods("POST")
	g.router.HandleFunc("/localization/stop", g.handleLocalizationStop).Methods("POST")
	g.router.HandleFunc("/seed", g.handleSeed).Methods("POST")
	g.router.HandleFunc("/events", g.handleEvents).Methods("GET")

	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.router.ServeHTTP(w, r)
}

// ListenAndServe serves the gateway on addr. Blocks.
func (g *Gateway) ListenAndServe(addr string) error {
	log.Printf("gateway: listening on %v", addr)
	return http.ListenAndServe(addr, g)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error.Printf("gateway: encode response: %v", err)
	}
}

func writeErr(w http.ResponseWriter, err error) {
	log.Error.Printf("gateway: %v", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	f := g.bridge.Features()
	writeJSON(w, map[string]interface{}{
		"state":            g.bridge.State().String(),
		"protocol_version": protocol.Version,
		"features": map[string]bool{
			"laser":    f.Laser,
			"laser2":   f.Laser2,
			"odometry": f.Odometry,
		},
	})
}

func (g *Gateway) handleConfig(w http.ResponseWriter, r *http.Request) {
	c := g.bridge.Config()
	if c == nil {
		writeJSON(w, map[string]string{})
		return
	}

	out := make(map[string]string, c.Len())
	for _, key := range c.Keys() {
		out[key] = c.StringOf(key)
	}
	writeJSON(w, out)
}

func (g *Gateway) handleMaps(w http.ResponseWriter, r *http.Request) {
	names, err := g.bridge.ListMaps()
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{"maps": names})
}

func (g *Gateway) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	g.exec(w, func() error {
		return g.bridge.StartRecording(r.URL.Query().Get("name"))
	})
}

func (g *Gateway) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	g.exec(w, g.bridge.StopRecording)
}

func (g *Gateway) handleMapStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RecordingName string `json:"recording_name"`
		MapName       string `json:"map_name"`
	}
	// an empty body is fine, the bridge falls back to the last names
	json.NewDecoder(r.Body).Decode(&body)

	g.exec(w, func() error {
		return g.bridge.StartMap(body.RecordingName, body.MapName)
	})
}

func (g *Gateway) handleMapStop(w http.ResponseWriter, r *http.Request) {
	g.exec(w, g.bridge.StopMap)
}

func (g *Gateway) handleMapSend(w http.ResponseWriter, r *http.Request) {
	g.exec(w, func() error {
		return g.bridge.SendMap(r.URL.Query().Get("name"))
	})
}

func (g *Gateway) handleMapSet(w http.ResponseWriter, r *http.Request) {
	g.exec(w, func() error {
		return g.bridge.SetMap(r.URL.Query().Get("name"))
	})
}

func (g *Gateway) handleLocalizationStart(w http.ResponseWriter, r *http.Request) {
	g.exec(w, g.bridge.StartLocalization)
}

func (g *Gateway) handleLocalizationStop(w http.ResponseWriter, r *http.Request) {
	g.exec(w, g.bridge.StopLocalization)
}

func (g *Gateway) handleSeed(w http.ResponseWriter, r *http.Request) {
	var body struct {
		X       float64 `json:"x"`
		Y       float64 `json:"y"`
		Yaw     float64 `json:"yaw"`
		Enforce bool    `json:"enforce"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g.exec(w, func() error {
		return g.bridge.SetSeed(datagram.Pose2D{X: body.X, Y: body.Y, Yaw: body.Yaw}, body.Enforce)
	})
}

func (g *Gateway) exec(w http.ResponseWriter, f func() error) {
	if err := f(); err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, map[string]string{"result": "ok"})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is one websocket message streamed on /events.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// handleEvents upgrades the connection and streams every localization
// pose the bridge decodes until the peer goes away.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error.Printf("gateway: %v", err)
		return
	}
	defer conn.Close()

	quit := make(chan struct{})
	fail := func() {
		select {
		case <-quit:
		default:
			close(quit)
		}
	}

	// keep on reading pong messages
	go func() {
		pongWait := time.Second * 20
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		for {
			if _, _, err := conn.NextReader(); err != nil {
				fail()
				break
			}
		}
	}()

	index, err := g.bridge.PubSub.Sub(bridge.TopicPose, func(i interface{}) {
		pose, ok := i.(*datagram.LocalizationPose)
		if !ok {
			return
		}

		conn.SetWriteDeadline(time.Now().Add(time.Second * 5))
		if err := websocket.WriteJSON(conn, Event{Type: "pose", Data: pose}); err != nil {
			fail()
		}
	})
	if err != nil {
		log.Error.Printf("gateway: %v", err)
		return
	}
	defer g.bridge.PubSub.Unsub(index, bridge.TopicPose)

	ticker := time.NewTicker(time.Second * 4)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(time.Second * 2))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
