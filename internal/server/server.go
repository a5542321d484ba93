package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Scrimzay/gridsim/internal/command"
	"github.com/Scrimzay/gridsim/internal/world"
)

// Server holds what the handlers share.
type Server struct {
	world       *world.World
	broadcaster *world.Broadcaster
	log         *zap.Logger
}

// console is the command.Controller behind HTTP and websocket commands: the
// world for edits, the broadcaster for stepping and play state.
type console struct {
	*world.World
	broadcaster *world.Broadcaster
}

func (c console) Step() (world.TickReport, error) { return c.broadcaster.StepOnce() }
func (c console) SetPlaying(playing bool)         { c.broadcaster.SetPlaying(playing) }

type commandRequest struct {
	Text string `json:"text" binding:"required"`
}

func SetupRouter(broadcaster *world.Broadcaster, gameWorld *world.World, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{world: gameWorld, broadcaster: broadcaster, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", s.healthHandler)
	r.GET("/board", s.boardHandler)
	r.GET("/entities/:id", s.entityHandler)
	r.POST("/command", s.commandHandler)
	r.POST("/step", s.stepHandler)

	r.GET("/ws", s.HandleWebsocket)

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tick": s.world.Tick()})
}

func (s *Server) boardHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.world.View())
}

func (s *Server) entityHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return
	}
	v, ok := s.world.Inspect(world.EntityID(id))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such entity"})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) commandHandler(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.runCommand(req.Text)
	if err != nil {
		c.JSON(commandStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) stepHandler(c *gin.Context) {
	report, err := s.broadcaster.StepOnce()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// runCommand applies one console line and pushes the new board to clients
// when the line edited it.
func (s *Server) runCommand(text string) (command.Result, error) {
	cmd, err := command.Parse(text)
	if err != nil {
		return command.Result{}, err
	}
	res, err := command.Apply(console{World: s.world, broadcaster: s.broadcaster}, cmd)
	if err != nil {
		s.log.Info("command rejected", zap.String("text", text), zap.Error(err))
		return command.Result{}, err
	}
	s.log.Info("command", zap.String("text", text), zap.String("result", res.Message))

	switch cmd.Op {
	case command.OpSpawn, command.OpDelete, command.OpMove, command.OpSetPath:
		s.broadcaster.BroadcastBoard()
		s.broadcaster.BroadcastStats()
	}
	return res, nil
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, command.ErrNoSuchEntity):
		return http.StatusNotFound

	case errors.Is(err, world.ErrVariantConflict), errors.Is(err, world.ErrTickAborted):
		return http.StatusConflict

	default:
		return http.StatusBadRequest
	}
}
