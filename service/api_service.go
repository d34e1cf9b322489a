package service

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/phantomstreams/phantom-sequencer/api"
	"github.com/phantomstreams/phantom-sequencer/cluster"
	"github.com/phantomstreams/phantom-sequencer/ledger"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/storage"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	storage *storage.Storage
	ledger  *ledger.Ledger
	cluster *cluster.Cluster
	api     *api.API
	mu      sync.Mutex
	cancel  context.CancelFunc
	stop    func()
	host    string
	port    int
}

// NewAPI creates a new APIService instance.
func NewAPI(stg *storage.Storage, lg *ledger.Ledger, cl *cluster.Cluster, host string, port int) *APIService {
	return &APIService{
		storage: stg,
		ledger:  lg,
		cluster: cl,
		host:    host,
		port:    port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	var err error
	as.api, err = api.New(&api.APIConfig{
		Host:    as.host,
		Port:    as.port,
		Storage: as.storage,
		Ledger:  as.ledger,
		Cluster: as.cluster,
	})
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	ctx, as.cancel = context.WithCancel(ctx)
	a := as.api
	stop := sync.OnceFunc(func() { stopAPI(a) })
	as.stop = stop
	go func() {
		<-ctx.Done()
		stop()
	}()
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
	if as.stop != nil {
		as.stop()
		as.stop = nil
	}
}

func stopAPI(a *api.API) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		log.Warnw("failed to stop API server", "error", err.Error())
	}
}

// HostPort returns the host and port of the API server. Once started, the
// port is the one actually bound.
func (as *APIService) HostPort() (string, int) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.api != nil {
		if addr, ok := as.api.Addr().(*net.TCPAddr); ok {
			return as.host, addr.Port
		}
	}
	return as.host, as.port
}
