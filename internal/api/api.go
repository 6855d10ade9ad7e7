// Package api serves the REST and websocket interface: current state, zone
// and actuator override requests, and recorded history.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/clambin/yplan-controller/internal/actuator"
	"github.com/clambin/yplan-controller/internal/demand"
	"github.com/clambin/yplan-controller/internal/historian"
	"github.com/clambin/yplan-controller/internal/poller"
	"github.com/clambin/yplan-controller/internal/zone"
	"github.com/gin-gonic/gin"
)

// all is the wildcard zone/actuator name: a request targeting it is applied
// to every zone or actuator.
const all = "ALL"

// A Kicker triggers an immediate rule evaluation after a request changed.
// Implemented by controller.Controller.
type Kicker interface {
	Kick()
}

// A Historer serves recorded history. Implemented by historian.Store.
type Historer interface {
	Temperatures(ctx context.Context, zone string, from, to time.Time) ([]historian.Temperature, error)
	Transitions(ctx context.Context, actuator string, from, to time.Time) ([]historian.Transition, error)
}

// A Server handles the REST API. It caches the latest poller update for the
// state endpoint and relays updates to websocket clients.
type Server struct {
	zones      map[string]*zone.Zone
	actuators  map[string]*actuator.Actuator
	history    Historer
	poller     poller.Poller
	kicker     Kicker
	logger     *slog.Logger
	router     *gin.Engine
	lock       sync.RWMutex
	lastUpdate *poller.Update
}

// New returns a Server for the given zones and actuators. history may be nil
// when no database is configured.
func New(zones []*zone.Zone, actuators []*actuator.Actuator, history Historer, p poller.Poller, kicker Kicker, logger *slog.Logger) *Server {
	s := Server{
		zones:     make(map[string]*zone.Zone, len(zones)),
		actuators: make(map[string]*actuator.Actuator, len(actuators)),
		history:   history,
		poller:    p,
		kicker:    kicker,
		logger:    logger,
	}
	for _, z := range zones {
		s.zones[z.Name()] = z
	}
	for _, a := range actuators {
		s.actuators[a.Name()] = a
	}

	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())

	api := s.router.Group("/api")
	api.GET("/state", s.getState)
	api.GET("/zones/:zone/schedule", s.getSchedule)
	api.POST("/zones/:zone/requests", s.addZoneRequest)
	api.DELETE("/zones/:zone/requests", s.cancelZoneRequest)
	api.POST("/actuators/:actuator/requests", s.addActuatorRequest)
	api.DELETE("/actuators/:actuator/requests", s.cancelActuatorRequest)
	api.GET("/history/temperatures", s.getTemperatures)
	api.GET("/history/transitions", s.getTransitions)
	api.GET("/ws", s.wsConnect)

	return &s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run caches poller updates until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Debug("started")
	defer s.logger.Debug("stopped")

	ch := s.poller.Subscribe()
	defer s.poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			s.lock.Lock()
			s.lastUpdate = &update
			s.lock.Unlock()
		}
	}
}

func (s *Server) getState(c *gin.Context) {
	s.lock.RLock()
	update := s.lastUpdate
	s.lock.RUnlock()
	if update == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no update yet"})
		return
	}
	c.JSON(http.StatusOK, update)
}

func (s *Server) getSchedule(c *gin.Context) {
	z, ok := s.zones[c.Param("zone")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown zone"})
		return
	}
	c.JSON(http.StatusOK, z.Schedule().Points())
}

type zoneRequestBody struct {
	Source string  `json:"source" binding:"required"`
	Target float64 `json:"target"`
	Until  string  `json:"until"`
}

func (s *Server) addZoneRequest(c *gin.Context) {
	var body zoneRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	zones, ok := s.matchZones(c.Param("zone"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown zone"})
		return
	}
	until, boost, purge, err := demand.ParseUntil(body.Until, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if purge {
		var canceled int
		for _, z := range zones {
			canceled += z.Cancel(body.Source)
		}
		s.kicker.Kick()
		c.JSON(http.StatusOK, gin.H{"canceled": canceled})
		return
	}

	requests := make([]demand.Request, 0, len(zones))
	for _, z := range zones {
		requests = append(requests, z.Request(body.Source, body.Target, until, boost))
		s.logger.Info("zone request added",
			slog.String("zone", z.Name()),
			slog.String("source", body.Source),
			slog.Float64("target", body.Target),
			slog.Bool("boost", boost),
		)
	}
	s.kicker.Kick()
	c.JSON(http.StatusCreated, requests)
}

func (s *Server) cancelZoneRequest(c *gin.Context) {
	source := c.Query("source")
	if source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source is required"})
		return
	}
	zones, ok := s.matchZones(c.Param("zone"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown zone"})
		return
	}
	var canceled int
	for _, z := range zones {
		canceled += z.Cancel(source)
	}
	s.kicker.Kick()
	c.JSON(http.StatusOK, gin.H{"canceled": canceled})
}

type actuatorRequestBody struct {
	Source string `json:"source" binding:"required"`
	State  *bool  `json:"state"`
	Until  string `json:"until"`
}

func (s *Server) addActuatorRequest(c *gin.Context) {
	var body actuatorRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actuators, ok := s.matchActuators(c.Param("actuator"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown actuator"})
		return
	}
	until, boost, purge, err := demand.ParseUntil(body.Until, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if purge {
		var canceled int
		for _, a := range actuators {
			canceled += a.Cancel(body.Source)
		}
		s.kicker.Kick()
		c.JSON(http.StatusOK, gin.H{"canceled": canceled})
		return
	}

	if body.State == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state is required"})
		return
	}
	requests := make([]demand.Request, 0, len(actuators))
	for _, a := range actuators {
		requests = append(requests, a.Request(body.Source, *body.State, until, boost))
		s.logger.Info("actuator request added",
			slog.String("actuator", a.Name()),
			slog.String("source", body.Source),
			slog.Bool("state", *body.State),
			slog.Bool("boost", boost),
		)
	}
	s.kicker.Kick()
	c.JSON(http.StatusCreated, requests)
}

func (s *Server) cancelActuatorRequest(c *gin.Context) {
	source := c.Query("source")
	if source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source is required"})
		return
	}
	actuators, ok := s.matchActuators(c.Param("actuator"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown actuator"})
		return
	}
	var canceled int
	for _, a := range actuators {
		canceled += a.Cancel(source)
	}
	s.kicker.Kick()
	c.JSON(http.StatusOK, gin.H{"canceled": canceled})
}

func (s *Server) getTemperatures(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no history database configured"})
		return
	}
	from, to, err := parseRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	samples, err := s.history.Temperatures(c.Request.Context(), c.Query("zone"), from, to)
	if err != nil {
		s.logger.Error("failed to query temperatures", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query history"})
		return
	}
	c.JSON(http.StatusOK, samples)
}

func (s *Server) getTransitions(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no history database configured"})
		return
	}
	from, to, err := parseRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	transitions, err := s.history.Transitions(c.Request.Context(), c.Query("actuator"), from, to)
	if err != nil {
		s.logger.Error("failed to query transitions", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query history"})
		return
	}
	c.JSON(http.StatusOK, transitions)
}

func (s *Server) matchZones(name string) ([]*zone.Zone, bool) {
	if name == all {
		zones := make([]*zone.Zone, 0, len(s.zones))
		for _, z := range s.zones {
			zones = append(zones, z)
		}
		return zones, true
	}
	z, ok := s.zones[name]
	if !ok {
		return nil, false
	}
	return []*zone.Zone{z}, true
}

func (s *Server) matchActuators(name string) ([]*actuator.Actuator, bool) {
	if name == all {
		actuators := make([]*actuator.Actuator, 0, len(s.actuators))
		for _, a := range s.actuators {
			actuators = append(actuators, a)
		}
		return actuators, true
	}
	a, ok := s.actuators[name]
	if !ok {
		return nil, false
	}
	return []*actuator.Actuator{a}, true
}

func parseRange(c *gin.Context) (from, to time.Time, err error) {
	if arg := c.Query("from"); arg != "" {
		if from, err = time.Parse(time.RFC3339, arg); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if arg := c.Query("to"); arg != "" {
		if to, err = time.Parse(time.RFC3339, arg); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}
