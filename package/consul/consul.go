package consul

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"
)

type ConsulConfig struct {
	Address    string
	Token      string
	Datacenter string
	TLSConfig  *TLSConfig
}

type TLSConfig struct {
	CACert     string
	ClientCert string
	ClientKey  string
	Insecure   bool
}

type HealthStatus struct {
	Connected bool          `json:"connected"`
	Address   string        `json:"address"`
	Leader    string        `json:"leader,omitempty"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
}

// Registration describes this server instance in the catalog. When
// HealthEndpoint is set, the agent polls it over HTTP every Interval.
type Registration struct {
	ID             string
	Name           string
	Address        string
	Port           int
	Tags           []string
	Meta           map[string]string
	HealthEndpoint string
	Interval       time.Duration
}

type ConsulService interface {
	HealthCheck(ctx context.Context) HealthStatus
	Register(ctx context.Context, registration Registration) error
	Deregister(ctx context.Context, serviceID string) error
	Close() error
}

type ConsulClient struct {
	client *api.Client
	config ConsulConfig
	mu     sync.RWMutex
}

func NewConsulClient(config ConsulConfig) (*ConsulClient, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = config.Address
	consulConfig.Token = config.Token

	if config.Datacenter != "" {
		consulConfig.Datacenter = config.Datacenter
	}

	if config.TLSConfig != nil {
		consulConfig.TLSConfig = api.TLSConfig{
			CAFile:             config.TLSConfig.CACert,
			CertFile:           config.TLSConfig.ClientCert,
			KeyFile:            config.TLSConfig.ClientKey,
			InsecureSkipVerify: config.TLSConfig.Insecure,
		}
	}

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %w", err)
	}

	if _, err := client.Agent().Self(); err != nil {
		return nil, fmt.Errorf("failed to connect to Consul: %w", err)
	}

	return &ConsulClient{
		client: client,
		config: config,
	}, nil
}

func (c *ConsulClient) HealthCheck(ctx context.Context) HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := time.Now()
	status := HealthStatus{
		Address: c.config.Address,
	}

	if c.client == nil {
		status.Error = "client closed"
		return status
	}

	if _, err := c.client.Agent().Self(); err != nil {
		status.Error = err.Error()
		return status
	}

	status.Connected = true
	status.Latency = time.Since(start)

	if leader, err := c.client.Status().Leader(); err == nil {
		status.Leader = leader
	}

	return status
}

func (c *ConsulClient) Register(ctx context.Context, registration Registration) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := validateRegistration(registration); err != nil {
		return err
	}

	service := &api.AgentServiceRegistration{
		ID:      registration.ID,
		Name:    registration.Name,
		Address: registration.Address,
		Port:    registration.Port,
		Tags:    registration.Tags,
		Meta:    registration.Meta,
	}

	if registration.HealthEndpoint != "" {
		interval := registration.Interval
		if interval <= 0 {
			interval = 10 * time.Second
		}
		service.Check = &api.AgentServiceCheck{
			HTTP:                           registration.HealthEndpoint,
			Interval:                       interval.String(),
			Timeout:                        (5 * time.Second).String(),
			DeregisterCriticalServiceAfter: (time.Minute).String(),
		}
	}

	if err := c.client.Agent().ServiceRegister(service); err != nil {
		return fmt.Errorf("failed to register service %s: %w", registration.Name, err)
	}

	return nil
}

func (c *ConsulClient) Deregister(ctx context.Context, serviceID string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.client.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("failed to deregister service %s: %w", serviceID, err)
	}

	return nil
}

func validateRegistration(registration Registration) error {
	if registration.ID == "" {
		return fmt.Errorf("service id is required")
	}
	if registration.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if registration.Port <= 0 || registration.Port > 65535 {
		return fmt.Errorf("invalid service port: %d", registration.Port)
	}
	return nil
}

func (c *ConsulClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client = nil

	return nil
}
