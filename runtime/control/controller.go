package control

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/lahuca/lane/common/config"
	"github.com/lahuca/lane/common/log"
	"github.com/lahuca/lane/framework/bus"
	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/datastore"
	"github.com/lahuca/lane/framework/request"
	"github.com/lahuca/lane/framework/transport"
)

// Controller is the central node: it owns the transport server, the
// network-wide registries and the data store, and drives the queue engine.
type Controller struct {
	Conf     config.ControllerConfiguration
	Registry *codec.Registry
	Server   *transport.Server
	Requests *request.Handler
	Store    *datastore.Store
	Bus      *bus.Publisher
	Locales  *LocaleService

	Players   *PlayerManager
	Instances *InstanceManager
	Games     *GameManager
	Parties   *PartyManager

	handlers map[string]HandlerFunc
}

func NewController(conf config.ControllerConfiguration, store *datastore.Store, publisher *bus.Publisher) (*Controller, error) {
	registry := codec.NewRegistry()
	codec.RegisterAll(registry)

	c := &Controller{
		Conf:      conf,
		Registry:  registry,
		Requests:  request.NewHandler(),
		Store:     store,
		Bus:       publisher,
		Players:   NewPlayerManager(),
		Instances: NewInstanceManager(),
		Games:     NewGameManager(),
	}

	tlsConf, err := serverTLS(conf.SocketConf)
	if err != nil {
		return nil, err
	}
	c.Server = transport.NewServer(transport.ServerOptions{
		Addr:         conf.SocketConf.Addr,
		TLSConfig:    tlsConf,
		Registry:     registry,
		OnPacket:     c.dispatch,
		OnDisconnect: c.onDisconnect,
	})
	c.Parties = NewPartyManager(c.Server)

	locales, err := NewLocaleService(store, time.Duration(conf.LocaleConf.CacheTTL)*time.Second)
	if err != nil {
		return nil, err
	}
	c.Locales = locales

	c.registerHandlers()
	return c, nil
}

func serverTLS(conf config.SocketConf) (*tls.Config, error) {
	if conf.Insecure || conf.CertFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(conf.CertFile, conf.KeyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// Run serves connections until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	log.Info("controller listening on %s", c.Conf.SocketConf.Addr)
	return c.Server.Serve(ctx)
}

// Shutdown sweeps ephemeral data and tears everything down.
func (c *Controller) Shutdown(ctx context.Context) {
	log.Info("controller shutting down")
	c.Server.Close()
	c.Requests.Close()
	c.Store.Shutdown(ctx)
	c.Locales.Close()
	c.Bus.Close()
}

func (c *Controller) onDisconnect(id string, err error) {
	if id == "" {
		log.Debug("unassigned connection closed: %v", err)
		return
	}
	log.Info("instance %s disconnected: %v", id, err)
	c.Instances.Disconnected(id)
	c.Games.RemoveOnInstance(id)
	c.Parties.UnsubscribeAll(id)
	for _, p := range c.Players.OnInstance(id) {
		c.Players.Remove(p.UUID)
	}
	c.Bus.Publish(bus.Event{Subject: bus.SubjectInstanceDown, Instance: id})
}
