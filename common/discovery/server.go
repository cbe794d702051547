package discovery

import (
	"encoding/json"
	"fmt"
)

// Server is the registration payload kept in etcd under <name>/<addr>.
type Server struct {
	Name    string `json:"name"`
	Addr    string `json:"addr"`
	Weight  int    `json:"weight"`
	Version string `json:"version"`
	Ttl     int    `json:"ttl"`
}

func (s Server) buildKey() string {
	return fmt.Sprintf("%s/%s", s.Name, s.Addr)
}

func ParseValue(value []byte) (Server, error) {
	var s Server
	if err := json.Unmarshal(value, &s); err != nil {
		return s, err
	}
	return s, nil
}
