package control

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lahuca/lane/common/log"
)

// AdminAPI is the read-only HTTP surface of the controller, meant for
// dashboards and operational tooling. It never mutates state.
type AdminAPI struct {
	c      *Controller
	server *http.Server
}

func NewAdminAPI(c *Controller, port int) *AdminAPI {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	api := &AdminAPI{
		c: c,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: engine,
		},
	}

	engine.GET("/status", api.status)
	engine.GET("/instances", api.instances)
	engine.GET("/players", api.players)
	engine.GET("/players/:uuid", api.player)
	engine.GET("/games", api.games)
	engine.GET("/parties/:id", api.party)
	return api
}

func (a *AdminAPI) Start() {
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin api stopped: %v", err)
		}
	}()
}

func (a *AdminAPI) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *AdminAPI) status(c *gin.Context) {
	conns, packets, relayed := a.c.Server.Stats()
	c.JSON(http.StatusOK, gin.H{
		"instances":       a.c.Instances.Count(),
		"players":         a.c.Players.Count(),
		"games":           a.c.Games.Count(),
		"parties":         a.c.Parties.Count(),
		"pendingRequests": a.c.Requests.PendingCount(),
		"totalConns":      conns,
		"packetsIn":       packets,
		"relayed":         relayed,
	})
}

func (a *AdminAPI) instances(c *gin.Context) {
	c.JSON(http.StatusOK, a.c.Instances.List())
}

func (a *AdminAPI) players(c *gin.Context) {
	c.JSON(http.StatusOK, a.c.Players.List())
}

func (a *AdminAPI) player(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}
	rec, ok := a.c.Players.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown player"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (a *AdminAPI) games(c *gin.Context) {
	c.JSON(http.StatusOK, a.c.Games.List())
}

func (a *AdminAPI) party(c *gin.Context) {
	var id int64
	if _, err := fmt.Sscanf(c.Param("id"), "%d", &id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	party, ok := a.c.Parties.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown party"})
		return
	}
	c.JSON(http.StatusOK, party.Record())
}
