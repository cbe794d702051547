package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/lahuca/lane/common/log"
)

var ControllerConfig ControllerConfiguration
var InstanceConfig InstanceConfiguration

type BaseConfig struct {
	ID         string `mapstructure:"id"`
	ServerType string `mapstructure:"serverType"`
	MetricPort int    `mapstructure:"metricPort"`
}

type ControllerConfiguration struct {
	BaseConfig    `mapstructure:",squash"`
	LogConf       `mapstructure:"log"`
	SocketConf    `mapstructure:"socket"`
	DatabaseConf  `mapstructure:"database"`
	JwtConf       `mapstructure:"jwt"`
	EtcdConf      `mapstructure:"etcd"`
	NatsConf      `mapstructure:"nats"`
	HttpConf      `mapstructure:"http"`
	DataConf      `mapstructure:"data"`
	LocaleConf    `mapstructure:"locale"`
	KeepAliveConf `mapstructure:"keepAlive"`
}

type InstanceConfiguration struct {
	BaseConfig    `mapstructure:",squash"`
	LogConf       `mapstructure:"log"`
	SocketConf    `mapstructure:"socket"`
	JwtConf       `mapstructure:"jwt"`
	EtcdConf      `mapstructure:"etcd"`
	KeepAliveConf `mapstructure:"keepAlive"`
	InstanceType  string `mapstructure:"instanceType"`
	MaxSlots      int    `mapstructure:"maxSlots"`
	StatusPeriod  int    `mapstructure:"statusPeriod"`
}

type LogConf struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// SocketConf configures the stream transport. When CertFile is empty the
// listener/dialer falls back to plain TCP (development only).
type SocketConf struct {
	Addr      string `mapstructure:"addr"`
	CertFile  string `mapstructure:"certFile"`
	KeyFile   string `mapstructure:"keyFile"`
	Insecure  bool   `mapstructure:"insecure"`
	WebSocket bool   `mapstructure:"webSocket"`
}

type EtcdConf struct {
	Addrs       []string       `mapstructure:"addrs"`
	RWTimeout   int            `mapstructure:"rwTimeout"`
	DialTimeout int            `mapstructure:"dialTimeout"`
	Register    RegisterServer `mapstructure:"register"`
}

type RegisterServer struct {
	Addr    string `mapstructure:"addr"`
	Domain  string `mapstructure:"domain"`
	Version string `mapstructure:"version"`
	Weight  int    `mapstructure:"weight"`
	Ttl     int    `mapstructure:"ttl"`
}

type JwtConf struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
	Expire  int    `mapstructure:"expire"`
}

type DatabaseConf struct {
	MongoConf MongoConf `mapstructure:"mongo"`
	RedisConf RedisConf `mapstructure:"redis"`
}

type MongoConf struct {
	Url         string `mapstructure:"url"`
	Db          string `mapstructure:"db"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	MinPoolSize int    `mapstructure:"minPoolSize"`
	MaxPoolSize int    `mapstructure:"maxPoolSize"`
}

type RedisConf struct {
	Addr         string   `mapstructure:"addr"`
	ClusterAddrs []string `mapstructure:"clusterAddrs"`
	Password     string   `mapstructure:"password"`
	PoolSize     int      `mapstructure:"poolSize"`
	MinIdleConns int      `mapstructure:"minIdleConns"`
}

type NatsConf struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type HttpConf struct {
	Port int `mapstructure:"port"`
}

// DataConf selects the data store backend: file, memory, redis or mongo.
type DataConf struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type LocaleConf struct {
	CacheTTL int `mapstructure:"cacheTTL"`
}

type KeepAliveConf struct {
	Period   int `mapstructure:"period"`
	MaxFails int `mapstructure:"maxFails"`
}

func Load(configFile string) error {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	// Only the log level is reloaded live; everything else needs a restart.
	v.OnConfigChange(func(e fsnotify.Event) {
		var lc struct {
			Log LogConf `mapstructure:"log"`
		}
		if err := v.Unmarshal(&lc); err != nil {
			log.Warn("reload %s failed: %v", e.Name, err)
			return
		}
		log.SetLevel(lc.Log.Level)
	})
	v.WatchConfig()

	var base BaseConfig
	if err := v.Unmarshal(&base); err != nil {
		return err
	}

	switch base.ServerType {
	case "controller":
		var cfg ControllerConfiguration
		if err := v.Unmarshal(&cfg); err != nil {
			return err
		}
		ControllerConfig = cfg
	case "instance":
		var cfg InstanceConfiguration
		if err := v.Unmarshal(&cfg); err != nil {
			return err
		}
		InstanceConfig = cfg
	default:
		return fmt.Errorf("unknown server type: %s", base.ServerType)
	}
	return nil
}
