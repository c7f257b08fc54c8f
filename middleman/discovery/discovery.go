// Package discovery adapts a Consul client into the
// service-registration/resolution the middleman needs for
// publish/connect-by-name.
package discovery

import (
	"fmt"

	consul "github.com/hashicorp/consul/api"

	"github.com/phuhao00/actorcore/config"
)

// Client wraps a Consul API client scoped to middleman's two needs:
// advertising a published actor's listen address under a service name,
// and resolving a service name back to a healthy (host, port).
type Client struct {
	api *consul.Client
}

// New connects to the Consul agent described by cfg.
func New(cfg config.ConsulConfig) (*Client, error) {
	apiCfg := consul.DefaultConfig()
	if cfg.Addr != "" {
		apiCfg.Address = cfg.Addr
	}
	c, err := consul.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: consul client: %w", err)
	}
	return &Client{api: c}, nil
}

// Register advertises id/name at addr:port, matching a
// ConsulClient.RegisterService.
func (c *Client) Register(id, name, addr string, port int) error {
	return c.api.Agent().ServiceRegister(&consul.AgentServiceRegistration{
		ID:      id,
		Name:    name,
		Address: addr,
		Port:    port,
	})
}

// Deregister removes a prior Register call's entry.
func (c *Client) Deregister(id string) error {
	return c.api.Agent().ServiceDeregister(id)
}

// Resolve returns one healthy instance of name, matching a
// RPCClient round-robin discovery but simplified to "first healthy
// instance" since middleman callers retry via Connect on failure.
func (c *Client) Resolve(name string) (addr string, port int, err error) {
	entries, _, err := c.api.Health().Service(name, "", true, nil)
	if err != nil {
		return "", 0, fmt.Errorf("discovery: resolve %s: %w", name, err)
	}
	if len(entries) == 0 {
		return "", 0, fmt.Errorf("discovery: no healthy instances for %s", name)
	}
	svc := entries[0].Service
	addr = svc.Address
	if addr == "" && entries[0].Node != nil {
		addr = entries[0].Node.Address
	}
	return addr, svc.Port, nil
}
