package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phantomstreams/phantom-sequencer/cluster"
	"github.com/phantomstreams/phantom-sequencer/ledger"
	"github.com/phantomstreams/phantom-sequencer/log"
	stg "github.com/phantomstreams/phantom-sequencer/storage"
)

// APIConfig type represents the configuration for the API HTTP server.
// The storage queues the computations, the ledger holds the public state
// and the cluster provides the keys owners seal their inputs to.
type APIConfig struct {
	Host    string
	Port    int
	Storage *stg.Storage
	Ledger  *ledger.Ledger
	Cluster *cluster.Cluster
}

// API type represents the API HTTP server.
type API struct {
	router  *chi.Mux
	server  *http.Server
	addr    net.Addr
	storage *stg.Storage
	ledger  *ledger.Ledger
	cluster *cluster.Cluster
}

// New creates a new API instance with the given configuration and starts
// the HTTP server. Port 0 picks a free port, see Addr.
func New(conf *APIConfig) (*API, error) {
	a, err := NewHandler(conf)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", conf.Host, conf.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	a.addr = ln.Addr()
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("Starting API server", "address", a.addr.String())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// NewHandler creates the API handlers without starting a server.
func NewHandler(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Ledger == nil {
		return nil, fmt.Errorf("missing ledger instance")
	}
	if conf.Cluster == nil {
		return nil, fmt.Errorf("missing cluster instance")
	}
	a := &API{
		storage: conf.Storage,
		ledger:  conf.Ledger,
		cluster: conf.Cluster,
	}

	// Initialize router
	a.initRouter()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Addr returns the address the server listens on, nil if no server was
// started.
func (a *API) Addr() net.Addr {
	return a.addr
}

// Stop gracefully shuts down the HTTP server.
func (a *API) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", InfoEndpoint, "method", "GET")
	a.router.Get(InfoEndpoint, a.info)
	log.Infow("register handler", "endpoint", RegistryRootEndpoint, "method", "GET")
	a.router.Get(RegistryRootEndpoint, a.registryRoot)
	log.Infow("register handler", "endpoint", RegistryRootEndpoint, "method", "POST")
	a.router.Post(RegistryRootEndpoint, a.updateRegistryRoot)
	log.Infow("register handler", "endpoint", OwnershipEndpoint, "method", "POST")
	a.router.Post(OwnershipEndpoint, a.verifyOwnership)
	log.Infow("register handler", "endpoint", VotesEndpoint, "method", "POST")
	a.router.Post(VotesEndpoint, a.newVote)
	log.Infow("register handler", "endpoint", VoteEndpoint, "method", "GET")
	a.router.Get(VoteEndpoint, a.vote)
	log.Infow("register handler", "endpoint", VoteBallotsEndpoint, "method", "POST")
	a.router.Post(VoteBallotsEndpoint, a.castBallot)
	log.Infow("register handler", "endpoint", VoteRevealEndpoint, "method", "POST")
	a.router.Post(VoteRevealEndpoint, a.revealVote)
	log.Infow("register handler", "endpoint", PaymentsEndpoint, "method", "POST")
	a.router.Post(PaymentsEndpoint, a.verifyPayment)
	log.Infow("register handler", "endpoint", ComputationEndpoint, "method", "GET")
	a.router.Get(ComputationEndpoint, a.computation)
	log.Infow("register handler", "endpoint", NullifierEndpoint, "method", "GET")
	a.router.Get(NullifierEndpoint, a.nullifier)
	log.Infow("register handler", "endpoint", EventsEndpoint, "method", "GET")
	a.router.Get(EventsEndpoint, a.events)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}
