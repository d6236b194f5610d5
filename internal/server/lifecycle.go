// Package server runs the daemon's long-lived components and shuts them down
// together on a signal, a cancelled context, or the first component failure.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component. Run blocks until ctx is cancelled or the
// component fails; a nil return after cancellation is a clean stop.
type Service interface {
	Run(ctx context.Context) error
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context) error

// Run calls f.
func (f ServiceFunc) Run(ctx context.Context) error { return f(ctx) }

// Closer adapts a close function into a Service that waits for cancellation and
// then closes. Stores and pools are registered this way so they outlive the
// services registered after them.
func Closer(close func() error) Service {
	return ServiceFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return close()
	})
}

type namedService struct {
	name    string
	service Service
}

// Lifecycle runs a set of named services.
type Lifecycle struct {
	logger   *zap.Logger
	grace    time.Duration
	mu       sync.Mutex
	services []namedService
}

// NewLifecycle creates a Lifecycle. grace bounds how long shutdown waits for each
// service; zero waits indefinitely.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger, grace time.Duration) *Lifecycle {
	return &Lifecycle{logger: logger, grace: grace}
}

// Add registers a named service. Services are stopped in reverse order of Add.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

type running struct {
	name   string
	cancel context.CancelFunc
	done   chan error
}

// Run starts every service and blocks until SIGINT/SIGTERM, ctx cancellation, or a
// service returning. It then cancels services in reverse order, waiting for each.
//
// Postcondition: every service has returned, or its grace period has elapsed.
// Returns the first service failure, if any.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()
	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	l.mu.Unlock()

	failed := make(chan error, len(services))
	runs := make([]running, 0, len(services))
	for _, ns := range services {
		svcCtx, cancel := context.WithCancel(context.Background())
		r := running{name: ns.name, cancel: cancel, done: make(chan error, 1)}
		runs = append(runs, r)
		l.logger.Info("starting service", zap.String("service", ns.name))
		go func() {
			err := ns.service.Run(svcCtx)
			if err != nil && svcCtx.Err() == nil {
				failed <- fmt.Errorf("service %s: %w", ns.name, err)
			} else if svcCtx.Err() == nil {
				failed <- fmt.Errorf("service %s: %w", ns.name, errExitedEarly)
			}
			r.done <- err
		}()
	}
	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-failed:
		l.logger.Error("service error, shutting down", zap.Error(err))
		runErr = err
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down")
	}

	l.shutdown(runs)
	l.logger.Info("shutdown complete", zap.Duration("total_uptime", time.Since(start)))
	return runErr
}

var errExitedEarly = errors.New("exited before shutdown")

func (l *Lifecycle) shutdown(runs []running) {
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		l.logger.Info("stopping service", zap.String("service", r.name))
		stopStart := time.Now()
		r.cancel()
		var timeout <-chan time.Time
		if l.grace > 0 {
			timer := time.NewTimer(l.grace)
			timeout = timer.C
			defer timer.Stop()
		}
		select {
		case err := <-r.done:
			if err != nil && !errors.Is(err, context.Canceled) {
				l.logger.Warn("service stopped with error", zap.String("service", r.name), zap.Error(err))
			}
			l.logger.Info("service stopped",
				zap.String("service", r.name),
				zap.Duration("elapsed", time.Since(stopStart)),
			)
		case <-timeout:
			l.logger.Warn("service did not stop within grace period", zap.String("service", r.name))
		}
	}
}
