package discovery

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/lahuca/lane/common/config"
	"github.com/lahuca/lane/common/log"
)

// Seeker resolves registered endpoints from etcd. Instances use it to find
// the controller address when one is not configured statically.
type Seeker struct {
	etcdCli *clientv3.Client
	conf    config.EtcdConf
}

func NewSeeker(conf config.EtcdConf) (*Seeker, error) {
	etcdCli, err := clientv3.New(clientv3.Config{
		Endpoints:   conf.Addrs,
		DialTimeout: time.Duration(conf.DialTimeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %v", err)
	}
	return &Seeker{etcdCli: etcdCli, conf: conf}, nil
}

func (seeker *Seeker) GetServers(serviceName string) ([]Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(seeker.conf.RWTimeout)*time.Second)
	defer cancel()

	res, err := seeker.etcdCli.Get(ctx, serviceName+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("list servers from etcd: %v", err)
	}

	servers := make([]Server, 0, len(res.Kvs))
	for _, kv := range res.Kvs {
		server, err := ParseValue(kv.Value)
		if err != nil {
			log.Error("parse server info failed, key=%s, err=%v", string(kv.Key), err)
			continue
		}
		servers = append(servers, server)
	}
	return servers, nil
}

func (seeker *Seeker) WatchServers(serviceName string, callback func([]Server)) {
	watchCh := seeker.etcdCli.Watch(context.Background(), serviceName+"/", clientv3.WithPrefix())
	go func() {
		for watchResp := range watchCh {
			if watchResp.Canceled {
				log.Warn("watch canceled, serviceName=%s", serviceName)
				return
			}
			servers, err := seeker.GetServers(serviceName)
			if err != nil {
				log.Error("watch refresh failed, serviceName=%s, err=%v", serviceName, err)
				continue
			}
			callback(servers)
		}
	}()
}

func (seeker *Seeker) Close() error {
	if seeker.etcdCli != nil {
		return seeker.etcdCli.Close()
	}
	return nil
}
