package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lahuca/lane/common/config"
	"github.com/lahuca/lane/common/log"
	"github.com/lahuca/lane/common/metrics"
	"github.com/lahuca/lane/controller/app"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "controller",
	Short: "lane controller node",
	Long:  `The controller tracks connected instances, routes players and serves the replicated data store.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.Load(configFile); err != nil {
			log.Fatal("loading config failed: %v", err)
		}
		log.InitLog(config.ControllerConfig.ID, config.ControllerConfig.LogConf.Level)

		if config.ControllerConfig.MetricPort > 0 {
			go func() {
				log.Info("metrics at http://localhost:%d/debug/statsviz/", config.ControllerConfig.MetricPort)
				if err := metrics.Serve(fmt.Sprintf("0.0.0.0:%d", config.ControllerConfig.MetricPort)); err != nil {
					panic(err)
				}
			}()
		}

		if err := app.Run(context.Background()); err != nil {
			log.Error("controller stopped: %v", err)
			os.Exit(-1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "configFile", "", "resource file")
	rootCmd.MarkFlagRequired("configFile")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("error happen: %#v", err)
		os.Exit(1)
	}
}
