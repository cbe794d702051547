package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/lahuca/lane/common/config"
	"github.com/lahuca/lane/common/log"
	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/records"
	"github.com/lahuca/lane/runtime/edge"
)

// loggingPlatform is the standalone agent's platform: it accepts every join
// and logs the rest. A real game server embeds edge.Agent with its own
// Platform instead of running this binary.
type loggingPlatform struct {
	agent *edge.Agent
}

func (p *loggingPlatform) HandleJoin(player records.PlayerRecord, gameID *int64, overrideSlots bool) string {
	log.Info("player %s joined (game=%v, override=%v)", player.UUID, gameID, overrideSlots)
	return codec.ResultOK
}

func (p *loggingPlatform) HandleQueueFinished(player uuid.UUID, message string) {
	log.Info("queue finished for %s: %s", player, message)
}

func (p *loggingPlatform) DeliverMessage(player uuid.UUID, message string) {
	log.Info("message for %s: %s", player, message)
}

func (p *loggingPlatform) DisconnectPlayer(player uuid.UUID, message string) {
	log.Info("disconnect %s: %s", player, message)
	p.agent.PlayerOffline(player)
}

func (p *loggingPlatform) Connected() {
	log.Info("controller session established")
}

func (p *loggingPlatform) Disconnected(err error) {
	log.Warn("controller session lost: %v", err)
}

func Run(ctx context.Context) error {
	platform := &loggingPlatform{}
	agent, err := edge.NewAgent(config.InstanceConfig, platform)
	if err != nil {
		return err
	}
	platform.agent = agent
	defer agent.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)
	go func() {
		select {
		case <-runCtx.Done():
		case s := <-c:
			log.Info("received %v, stopping", s)
			cancel()
		}
	}()

	return agent.Start(runCtx)
}
