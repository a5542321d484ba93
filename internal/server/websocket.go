package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Scrimzay/gridsim/internal/command"
	"github.com/Scrimzay/gridsim/internal/world"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type CommandAction struct {
	Action string `json:"action"`
	Text   string `json:"text"`
}

type SpeedAction struct {
	Action     string  `json:"action"`
	Multiplier float64 `json:"multiplier"`
}

type InspectAction struct {
	Action string         `json:"action"`
	ID     world.EntityID `json:"id"`
}

type commandResponse struct {
	Action string          `json:"action"`
	Result *command.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type inspectResponse struct {
	Action string            `json:"action"`
	Empty  bool              `json:"empty"`
	Entity *world.EntityView `json:"entity,omitempty"`
}

type errorResponse struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}

// HandleWebsocket upgrades the request, registers the client for broadcasts
// and serves its actions until the connection drops.
func (s *Server) HandleWebsocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("ws upgrade", zap.Error(err))
		return
	}

	s.broadcaster.Register(conn)
	defer s.broadcaster.Unregister(conn)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var base struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			s.reply(conn, errorResponse{Action: "error", Error: "malformed message"})
			continue
		}

		switch base.Action {
		case "command":
			var cmd CommandAction
			json.Unmarshal(msg, &cmd)
			resp := commandResponse{Action: "command_result"}
			res, err := s.runCommand(cmd.Text)
			if err != nil {
				resp.Error = err.Error()
			} else {
				resp.Result = &res
			}
			s.reply(conn, resp)

		case "step":
			// results reach every client through the tick broadcast
			s.broadcaster.StepOnce()

		case "toggle_pause":
			s.broadcaster.TogglePause()

		case "set_speed":
			var speed SpeedAction
			json.Unmarshal(msg, &speed)
			if speed.Multiplier <= 0 {
				s.reply(conn, errorResponse{Action: "error", Error: "multiplier must be positive"})
				continue
			}
			s.broadcaster.SetSpeed(speed.Multiplier)

		case "inspect":
			var inspect InspectAction
			if err := json.Unmarshal(msg, &inspect); err != nil {
				s.reply(conn, errorResponse{Action: "error", Error: "inspect needs an id"})
				continue
			}
			resp := inspectResponse{Action: "inspect_response", Empty: true}
			if v, ok := s.world.Inspect(inspect.ID); ok {
				resp.Empty = false
				resp.Entity = &v
			}
			s.reply(conn, resp)

		default:
			s.reply(conn, errorResponse{Action: "error", Error: "unknown action " + base.Action})
		}
	}
}

func (s *Server) reply(conn *websocket.Conn, v any) {
	if err := s.broadcaster.WriteTo(conn, v); err != nil {
		s.log.Warn("ws reply", zap.Error(err))
	}
}
