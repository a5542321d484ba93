package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"github.com/Scrimzay/gridsim/internal/command"
	"github.com/Scrimzay/gridsim/internal/types"
	"github.com/Scrimzay/gridsim/internal/world"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, compress bool) (*gin.Engine, *world.World, *world.Broadcaster) {
	t.Helper()
	w := world.New(world.Options{Seed: 1}, nil)
	b, err := world.NewBroadcaster(w, world.BroadcasterOptions{Compress: compress}, nil)
	if err != nil {
		t.Fatalf("broadcaster: %v", err)
	}
	return SetupRouter(b, w, nil), w, b
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	r, _, _ := newTestRouter(t, false)
	rec := do(t, r, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("body=%v", body)
	}
}

func TestCommandStepAndInspect(t *testing.T) {
	r, w, _ := newTestRouter(t, false)

	rec := do(t, r, http.MethodPost, "/command", commandRequest{Text: "robot 0 0 r"})
	if rec.Code != http.StatusOK {
		t.Fatalf("robot status=%d body=%s", rec.Code, rec.Body)
	}
	var res command.Result
	decode(t, rec, &res)
	if res.Entity == nil || res.Entity.ID != 1 || res.Entity.Kind != "mover" {
		t.Fatalf("result=%+v", res)
	}

	rec = do(t, r, http.MethodPost, "/step", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("step status=%d", rec.Code)
	}
	var report world.TickReport
	decode(t, rec, &report)
	if report.Tick != 1 || len(report.Moves) != 1 {
		t.Fatalf("report=%+v", report)
	}

	rec = do(t, r, http.MethodGet, "/entities/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("inspect status=%d", rec.Code)
	}
	var v world.EntityView
	decode(t, rec, &v)
	if v.At != (types.Coord{Row: 0, Col: 1}) {
		t.Fatalf("at=%v want (0,1)", v.At)
	}

	rec = do(t, r, http.MethodGet, "/board", nil)
	var board world.BoardView
	decode(t, rec, &board)
	if board.Tick != 1 || len(board.Entities) != 1 {
		t.Fatalf("board=%+v", board)
	}
	if w.Tick() != 1 {
		t.Fatalf("world tick=%d", w.Tick())
	}
}

func TestCommandErrors(t *testing.T) {
	r, _, _ := newTestRouter(t, false)

	cases := []struct {
		body any
		want int
	}{
		{map[string]string{}, http.StatusBadRequest},
		{commandRequest{Text: "fly 1 2"}, http.StatusBadRequest},
		{commandRequest{Text: "set path 7 rr"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := do(t, r, http.MethodPost, "/command", tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%v: status=%d want %d body=%s", tc.body, rec.Code, tc.want, rec.Body)
		}
	}

	do(t, r, http.MethodPost, "/command", commandRequest{Text: "conveyor 2 2 up"})
	rec := do(t, r, http.MethodPost, "/command", commandRequest{Text: "conveyor 2 2 down"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("conflict status=%d want 409", rec.Code)
	}

	if rec := do(t, r, http.MethodGet, "/entities/abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/entities/99", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing id status=%d", rec.Code)
	}
}

func TestStep_AbortedTickPauses(t *testing.T) {
	r, w, b := newTestRouter(t, false)
	b.SetPlaying(true)
	for _, line := range []string{"robot 0 0 rw", "robot 0 1 w"} {
		if rec := do(t, r, http.MethodPost, "/command", commandRequest{Text: line}); rec.Code != http.StatusOK {
			t.Fatalf("%q status=%d", line, rec.Code)
		}
	}
	rec := do(t, r, http.MethodPost, "/step", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status=%d want 409", rec.Code)
	}
	if b.Playing() {
		t.Fatalf("still playing after failed tick")
	}
	if w.Tick() != 0 {
		t.Fatalf("tick=%d want 0", w.Tick())
	}
}

// wsClient reads JSON messages off a websocket, inflating zstd frames.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	dec  *zstd.Decoder
}

func dial(t *testing.T, r http.Handler) *wsClient {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	t.Cleanup(dec.Close)
	return &wsClient{t: t, conn: conn, dec: dec}
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(v); err != nil {
		c.t.Fatalf("send: %v", err)
	}
}

// next returns the next message whose key field equals value.
func (c *wsClient) next(key, value string) map[string]any {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("waiting for %s=%s: %v", key, value, err)
		}
		if msgType == websocket.BinaryMessage {
			if data, err = c.dec.DecodeAll(data, nil); err != nil {
				c.t.Fatalf("inflate: %v", err)
			}
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			c.t.Fatalf("decode %q: %v", data, err)
		}
		if msg[key] == value {
			return msg
		}
	}
}

func TestWebsocket_Actions(t *testing.T) {
	r, _, b := newTestRouter(t, false)
	c := dial(t, r)

	c.next("type", "board")
	c.next("type", "stats")

	// edits push the board before the reply
	c.send(CommandAction{Action: "command", Text: "robot 3 3 d"})
	board := c.next("type", "board")
	if ents := board["board"].(map[string]any)["entities"].([]any); len(ents) != 1 {
		t.Fatalf("board entities=%v", ents)
	}
	resp := c.next("action", "command_result")
	if resp["error"] != nil {
		t.Fatalf("command error: %v", resp["error"])
	}

	c.send(CommandAction{Action: "command", Text: "robot 3 3"})
	if resp := c.next("action", "command_result"); resp["error"] == nil {
		t.Fatalf("duplicate robot accepted: %v", resp)
	}

	c.send(map[string]string{"action": "step"})
	tick := c.next("type", "tick")
	if tick["tick"].(map[string]any)["tick"].(float64) != 1 {
		t.Fatalf("tick=%v", tick)
	}

	c.send(InspectAction{Action: "inspect", ID: 1})
	inspect := c.next("action", "inspect_response")
	if inspect["empty"] != false {
		t.Fatalf("inspect=%v", inspect)
	}
	at := inspect["entity"].(map[string]any)["at"].(map[string]any)
	if at["row"].(float64) != 4 || at["col"].(float64) != 3 {
		t.Fatalf("at=%v want (4,3)", at)
	}

	c.send(InspectAction{Action: "inspect", ID: 42})
	if inspect := c.next("action", "inspect_response"); inspect["empty"] != true {
		t.Fatalf("inspect missing=%v", inspect)
	}

	c.send(SpeedAction{Action: "set_speed", Multiplier: 4})
	for {
		stats := c.next("type", "stats")["stats"].(map[string]any)
		if stats["speed"].(float64) == 4 {
			break
		}
	}
	if b.Speed() != 4 {
		t.Fatalf("speed=%v want 4", b.Speed())
	}

	c.send(SpeedAction{Action: "set_speed", Multiplier: -1})
	c.next("action", "error")

	c.send(map[string]string{"action": "teleport"})
	if msg := c.next("action", "error"); !strings.Contains(msg["error"].(string), "teleport") {
		t.Fatalf("error=%v", msg)
	}
}

func TestWebsocket_CompressedBoardFrames(t *testing.T) {
	r, w, _ := newTestRouter(t, true)
	if err := w.InitMap("yard"); err != nil {
		t.Fatalf("init map: %v", err)
	}
	c := dial(t, r)

	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("first frame type=%d want binary", msgType)
	}
	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	var env world.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != "board" || env.Board == nil || len(env.Board.Entities) != 6 {
		t.Fatalf("envelope=%+v", env)
	}

	// non-board messages stay text
	msgType, _, err = c.conn.ReadMessage()
	if err != nil || msgType != websocket.TextMessage {
		t.Fatalf("stats frame type=%d err=%v", msgType, err)
	}
}
