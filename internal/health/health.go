// Package health reports dependency readiness over the standard gRPC health
// protocol and to the HTTP readiness endpoint.
package health

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name covering the whole storefront.
const ServiceName = "medistore.Storefront"

const probeTimeout = 2 * time.Second

// Probe returns nil while the dependency is usable.
type Probe func(ctx context.Context) error

type Checker struct {
	srv    *grpchealth.Server
	names  []string
	probes map[string]Probe

	mu   sync.RWMutex
	last map[string]error
}

func New(probes map[string]Probe) *Checker {
	names := make([]string, 0, len(probes))
	for n := range probes {
		names = append(names, n)
	}
	sort.Strings(names)

	c := &Checker{
		srv:    grpchealth.NewServer(),
		names:  names,
		probes: probes,
		last:   make(map[string]error, len(probes)),
	}
	c.srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	c.srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return c
}

// Register exposes the checker on s.
func (c *Checker) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, c.srv)
}

// Check runs every probe once and publishes the result. It returns the
// per-dependency status, "ok" or the error text.
func (c *Checker) Check(ctx context.Context) (map[string]string, bool) {
	out := make(map[string]string, len(c.names))
	ready := true
	results := make(map[string]error, len(c.names))
	for _, n := range c.names {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := c.probes[n](pctx)
		cancel()

		results[n] = err
		status := healthpb.HealthCheckResponse_SERVING
		out[n] = "ok"
		if err != nil {
			ready = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			out[n] = err.Error()
		}
		c.srv.SetServingStatus(ServiceName+"."+n, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !ready {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.srv.SetServingStatus("", overall)
	c.srv.SetServingStatus(ServiceName, overall)

	c.mu.Lock()
	for n, err := range results {
		if (err == nil) != (c.last[n] == nil) || !c.seen(n) {
			if err != nil {
				log.Printf("[health] %s down: %v", n, err)
			} else {
				log.Printf("[health] %s up", n)
			}
		}
	}
	c.last = results
	c.mu.Unlock()
	return out, ready
}

// seen reports whether n has been probed before. Caller holds mu.
func (c *Checker) seen(n string) bool {
	_, ok := c.last[n]
	return ok
}

// Run probes every interval until ctx is done.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	c.Check(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Check(ctx)
		}
	}
}

// Shutdown marks everything NOT_SERVING so load balancers drain first.
func (c *Checker) Shutdown() {
	c.srv.Shutdown()
}
