// Package config loads actorcore's runtime configuration from YAML,
// adapted from a legacy server config: same shape for
// the Redis/Mongo/Consul/NSQ sections, a package-level lazily loaded
// singleton, and gopkg.in/yaml.v3 for decoding.
package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

type RedisConfig struct {
	Addr          string   `yaml:"addr"`
	Password      string   `yaml:"password,omitempty"`
	DB            int      `yaml:"db,omitempty"`
	MasterName    string   `yaml:"master_name,omitempty"`
	SentinelAddrs []string `yaml:"sentinel_addrs,omitempty"`
}

type MongoConfig struct {
	URI              string   `yaml:"uri,omitempty"`
	Hosts            []string `yaml:"hosts,omitempty"`
	ReplicaSet       string   `yaml:"replica_set,omitempty"`
	Database         string   `yaml:"database"`
	Collection       string   `yaml:"collection"`
	Username         string   `yaml:"username,omitempty"`
	Password         string   `yaml:"password,omitempty"`
	AuthSource       string   `yaml:"auth_source,omitempty"`
	ConnectTimeoutMS int64    `yaml:"connect_timeout_ms,omitempty"`
	MaxPoolSize      uint64   `yaml:"max_pool_size,omitempty"`
}

type ConsulConfig struct {
	Addr string `yaml:"addr"`
}

type NSQConfig struct {
	NSQDAddr                string   `yaml:"nsqd_addr,omitempty"`
	NSQDAddresses           []string `yaml:"nsqd_addresses,omitempty"`
	NSQLookupdHTTPAddresses []string `yaml:"nsqlookupd_http_addresses,omitempty"`
}

// NodeConfig describes this process's identity and listen address.
type NodeConfig struct {
	Name            string `yaml:"name"`
	ListenAddr      string `yaml:"listen_addr"`
	ServiceName     string `yaml:"service_name,omitempty"`
	SchedulerWorkers int   `yaml:"scheduler_workers,omitempty"`
	Throughput      int    `yaml:"throughput,omitempty"`
}

// GRPCConfig configures the gRPC-backed Transport, when used in place
// of the loopback transport.
type GRPCConfig struct {
	DialTimeoutMS int64 `yaml:"dial_timeout_ms,omitempty"`
}

// RuntimeConfig is the top-level document loaded from the config file.
type RuntimeConfig struct {
	Node   NodeConfig   `yaml:"node"`
	GRPC   GRPCConfig   `yaml:"grpc"`
	Redis  RedisConfig  `yaml:"redis"`
	Mongo  MongoConfig  `yaml:"mongo"`
	Consul ConsulConfig `yaml:"consul"`
	NSQ    NSQConfig    `yaml:"nsq"`
}

var (
	runtimeConfigOnce     sync.Once
	runtimeConfigInstance *RuntimeConfig
	runtimeConfigErr      error
)

// GetRuntimeConfig loads config/runtime.yaml on first call and caches
// the result, matching a GetServerConfig lazy singleton.
func GetRuntimeConfig() (*RuntimeConfig, error) {
	runtimeConfigOnce.Do(func() {
		runtimeConfigInstance, runtimeConfigErr = loadConfig("config/runtime.yaml")
	})
	return runtimeConfigInstance, runtimeConfigErr
}

func loadConfig(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg RuntimeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return &cfg, nil
}
