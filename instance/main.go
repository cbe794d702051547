package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lahuca/lane/common/config"
	"github.com/lahuca/lane/common/log"
	"github.com/lahuca/lane/common/metrics"
	"github.com/lahuca/lane/instance/app"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "instance",
	Short: "lane instance agent",
	Long:  `The instance agent connects a game server to the controller and keeps its status reported.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.Load(configFile); err != nil {
			log.Fatal("loading config failed: %v", err)
		}
		log.InitLog(config.InstanceConfig.ID, config.InstanceConfig.LogConf.Level)

		if config.InstanceConfig.MetricPort > 0 {
			go func() {
				log.Info("metrics at http://localhost:%d/debug/statsviz/", config.InstanceConfig.MetricPort)
				if err := metrics.Serve(fmt.Sprintf("0.0.0.0:%d", config.InstanceConfig.MetricPort)); err != nil {
					panic(err)
				}
			}()
		}

		if err := app.Run(context.Background()); err != nil {
			log.Error("instance agent stopped: %v", err)
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
