package etcd

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Client wraps the etcd client
type Client struct {
	client  *clientv3.Client
	enabled bool
	logger  *zap.Logger
}

// NewClient creates a new etcd client. When etcd is unreachable the
// client degrades to disabled instead of failing startup.
func NewClient(endpoints []string, enabled bool, logger *zap.Logger) (*Client, error) {
	if !enabled {
		return &Client{enabled: false, logger: logger}, nil
	}

	if len(endpoints) == 0 {
		endpoints = []string{"http://localhost:2379"}
	}

	config := clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	}

	client, err := clientv3.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err = client.Status(ctx, endpoints[0])
	if err != nil {
		logger.Warn("etcd connection test failed, registration disabled", zap.Error(err))
		return &Client{enabled: false, logger: logger}, nil
	}

	logger.Info("etcd client initialized", zap.Strings("endpoints", endpoints))
	return &Client{
		client:  client,
		enabled: true,
		logger:  logger,
	}, nil
}

// IsEnabled returns whether etcd is enabled
func (c *Client) IsEnabled() bool {
	return c.enabled && c.client != nil
}

// GetClient returns the underlying etcd client
func (c *Client) GetClient() *clientv3.Client {
	return c.client
}

// Close closes the etcd client
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
