package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"sizefit-service/pkg/config"
	"sizefit-service/pkg/logger"
)

// leaseClient is the subset of the etcd client the registry uses.
type leaseClient interface {
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error)
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
	Close() error
}

// ServiceRegistry 在 etcd 中登记本实例的 HTTP 地址，租约过期即自动下线
type ServiceRegistry struct {
	client         leaseClient
	key            string
	addr           string
	ttl            int64
	requestTimeout time.Duration

	mu      sync.Mutex
	leaseID clientv3.LeaseID
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServiceRegistry dials etcd. serviceAddr is the advertised host:port.
func NewServiceRegistry(cfg config.DiscoveryConfig, serviceAddr string) (*ServiceRegistry, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return newServiceRegistry(client, cfg, serviceAddr), nil
}

func newServiceRegistry(client leaseClient, cfg config.DiscoveryConfig, serviceAddr string) *ServiceRegistry {
	ttl := int64(cfg.TTL.Seconds())
	if ttl <= 0 {
		ttl = 30
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ServiceRegistry{
		client:         client,
		key:            ServiceKey(cfg.ServiceName, cfg.ServiceID),
		addr:           serviceAddr,
		ttl:            ttl,
		requestTimeout: timeout,
	}
}

// ServiceKey is the etcd key an instance is announced under.
func ServiceKey(serviceName, serviceID string) string {
	return fmt.Sprintf("/services/%s/%s", serviceName, serviceID)
}

func (r *ServiceRegistry) Name() string {
	return "service-registry"
}

// Start grants a lease, writes the instance key and keeps the lease alive
// until Stop.
func (r *ServiceRegistry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return fmt.Errorf("service registry already running")
	}

	reqCtx, cancelReq := context.WithTimeout(ctx, r.requestTimeout)
	defer cancelReq()
	leaseResp, err := r.client.Grant(reqCtx, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	if _, err := r.client.Put(reqCtx, r.key, r.addr, clientv3.WithLease(leaseResp.ID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	ch, err := r.client.KeepAlive(runCtx, leaseResp.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to keep alive lease: %w", err)
	}
	r.leaseID = leaseResp.ID
	r.cancel = cancel

	r.wg.Add(1)
	go r.drain(runCtx, ch)

	logger.Infof("Service registered key=%s addr=%s ttl=%ds", r.key, r.addr, r.ttl)
	return nil
}

// drain consumes keepalive responses; the client stops renewing when nobody reads.
func (r *ServiceRegistry) drain(ctx context.Context, ch <-chan *clientv3.LeaseKeepAliveResponse) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ka, ok := <-ch:
			if !ok || ka == nil {
				logger.Warnf("Keep alive channel closed key=%s", r.key)
				return
			}
		}
	}
}

// Stop revokes the lease, which removes the instance key, and closes the client.
func (r *ServiceRegistry) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	r.wg.Wait()
	r.cancel = nil

	ctx, cancel := context.WithTimeout(context.Background(), r.requestTimeout)
	defer cancel()
	if _, err := r.client.Revoke(ctx, r.leaseID); err != nil {
		logger.Warnf("Failed to revoke lease key=%s error=%v", r.key, err)
	}
	r.leaseID = 0
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close etcd client: %w", err)
	}
	logger.Infof("Service deregistered key=%s", r.key)
	return nil
}
