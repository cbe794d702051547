package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lahuca/lane/common/config"
	"github.com/lahuca/lane/common/database"
	"github.com/lahuca/lane/common/discovery"
	"github.com/lahuca/lane/common/log"
	"github.com/lahuca/lane/framework/bus"
	"github.com/lahuca/lane/framework/datastore"
	"github.com/lahuca/lane/runtime/control"
)

func Run(ctx context.Context) error {
	conf := config.ControllerConfig

	backend, err := buildBackend(conf)
	if err != nil {
		return fmt.Errorf("data backend: %w", err)
	}
	store := datastore.NewStore(backend)

	var publisher *bus.Publisher
	if conf.NatsConf.Enabled {
		publisher, err = bus.NewPublisher(conf.NatsConf.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
	}

	controller, err := control.NewController(conf, store, publisher)
	if err != nil {
		return err
	}

	if err := controller.Server.Listen(); err != nil {
		return fmt.Errorf("listen on %s: %w", conf.SocketConf.Addr, err)
	}

	// websocket transport shares the listener port logic with the admin
	// api only when enabled; by default instances dial raw TCP.
	if conf.SocketConf.WebSocket {
		go serveWebSocket(controller)
	}

	var register *discovery.Register
	if len(conf.EtcdConf.Addrs) > 0 {
		register = discovery.NewRegister()
		if err := register.Register(conf.EtcdConf); err != nil {
			return fmt.Errorf("etcd register: %w", err)
		}
	}

	var api *control.AdminAPI
	if conf.HttpConf.Port > 0 {
		api = control.NewAdminAPI(controller, conf.HttpConf.Port)
		api.Start()
		log.Info("admin api on :%d", conf.HttpConf.Port)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- controller.Run(runCtx)
	}()

	stop := func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()

		if register != nil {
			register.Close()
		}
		if api != nil {
			if err := api.Shutdown(shutdownCtx); err != nil {
				log.Error("admin api shutdown: %v", err)
			}
		}
		controller.Shutdown(shutdownCtx)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)
	select {
	case <-ctx.Done():
		stop()
		return nil
	case err := <-errCh:
		stop()
		return err
	case s := <-c:
		log.Info("received %v, stopping", s)
		cancel()
		stop()
		return nil
	}
}

func buildBackend(conf config.ControllerConfiguration) (datastore.Backend, error) {
	switch conf.DataConf.Backend {
	case "", "memory":
		return datastore.NewMemoryBackend(), nil
	case "file":
		return datastore.NewFileBackend(conf.DataConf.Dir)
	case "redis":
		manager := database.NewRedis(conf.DatabaseConf.RedisConf)
		cli, err := manager.GetClient()
		if err != nil {
			return nil, err
		}
		return datastore.NewRedisBackend(cli), nil
	case "mongo":
		manager := database.NewMongo(conf.DatabaseConf.MongoConf)
		return datastore.NewMongoBackend(manager.Db), nil
	default:
		return nil, fmt.Errorf("unknown data backend: %s", conf.DataConf.Backend)
	}
}

// serveWebSocket exposes the envelope stream over HTTP upgrade, one port
// above the TCP socket.
func serveWebSocket(controller *control.Controller) {
	mux := http.NewServeMux()
	mux.Handle("/socket", controller.Server.WebSocketHandler())
	addr := websocketAddr(controller.Conf.SocketConf.Addr)
	log.Info("websocket transport on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("websocket transport stopped: %v", err)
	}
}

func websocketAddr(tcpAddr string) string {
	host, port, err := net.SplitHostPort(tcpAddr)
	if err != nil {
		return tcpAddr
	}
	n, _ := strconv.Atoi(port)
	return net.JoinHostPort(host, strconv.Itoa(n+1))
}
