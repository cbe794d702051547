package discovery

import (
	"context"
	"encoding/json"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/lahuca/lane/common/config"
	"github.com/lahuca/lane/common/log"
)

// Register announces the controller endpoint in etcd with a leased key so
// that instances can resolve it without static configuration.
type Register struct {
	etcdCli     *clientv3.Client
	leaseID     clientv3.LeaseID
	DialTimeout int
	keepAliveCh <-chan *clientv3.LeaseKeepAliveResponse
	info        Server
	closeCh     chan struct{}
}

func NewRegister() *Register {
	return &Register{
		DialTimeout: 3,
	}
}

func (r *Register) Register(conf config.EtcdConf) error {
	r.info = Server{
		Name:    conf.Register.Domain,
		Addr:    conf.Register.Addr,
		Weight:  conf.Register.Weight,
		Version: conf.Register.Version,
		Ttl:     conf.Register.Ttl,
	}

	var err error
	r.etcdCli, err = clientv3.New(clientv3.Config{
		Endpoints:   conf.Addrs,
		DialTimeout: time.Duration(r.DialTimeout) * time.Second,
	})
	if err != nil {
		return err
	}

	if err = r.register(); err != nil {
		return err
	}

	r.closeCh = make(chan struct{})
	go r.watch()
	return nil
}

func (r *Register) register() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.DialTimeout)*time.Second)
	defer cancel()

	if err := r.grantLease(ctx, r.info.Ttl); err != nil {
		return err
	}

	var err error
	r.keepAliveCh, err = r.etcdCli.KeepAlive(context.Background(), r.leaseID)
	if err != nil {
		log.Error("etcd lease keepalive failed: %v", err)
		return err
	}

	data, _ := json.Marshal(r.info)
	_, err = r.etcdCli.Put(ctx, r.info.buildKey(), string(data), clientv3.WithLease(r.leaseID))
	if err != nil {
		log.Error("etcd lease bind failed: %v", err)
		return err
	}
	log.Info("etcd registered: %s", r.info.buildKey())
	return nil
}

func (r *Register) grantLease(ctx context.Context, ttl int) error {
	lease, err := r.etcdCli.Grant(ctx, int64(ttl))
	if err != nil {
		return err
	}
	r.leaseID = lease.ID
	return nil
}

func (r *Register) watch() {
	ticker := time.NewTicker(time.Duration(r.info.Ttl) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case res := <-r.keepAliveCh:
			if res == nil {
				if err := r.register(); err != nil {
					log.Error("etcd re-register failed: %v", err)
				}
			}
		case <-ticker.C:
		case <-r.closeCh:
			if err := r.unregister(); err != nil {
				log.Error("etcd unregister failed: %v", err)
			}
			if _, err := r.etcdCli.Revoke(context.Background(), r.leaseID); err != nil {
				log.Error("etcd lease revoke failed: %v", err)
			}
			log.Info("etcd registration closed")
			return
		}
	}
}

func (r *Register) unregister() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.DialTimeout)*time.Second)
	defer cancel()

	_, err := r.etcdCli.Delete(ctx, r.info.buildKey())
	return err
}

func (r *Register) Close() {
	r.closeCh <- struct{}{}
}
