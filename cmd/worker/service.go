package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
)

const defaultHeartbeat = time.Minute

type pinger interface {
	Ping(context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

// Subscriber is one Pub/Sub consumer loop hosted by the worker.
type Subscriber struct {
	Name     string
	Consumer consumer
}

type ServiceParams struct {
	Logger      *logger.Logger
	DB          pinger
	Redis       pinger
	PubSub      pinger
	Subscribers []Subscriber
	Heartbeat   time.Duration
}

// Service hosts the subscribers until the context ends or one of them fails.
type Service struct {
	logg        *logger.Logger
	deps        []namedPinger
	subscribers []Subscriber
	heartbeat   time.Duration
}

type namedPinger struct {
	name string
	p    pinger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	deps := []namedPinger{{"database", params.DB}, {"redis", params.Redis}, {"pubsub", params.PubSub}}
	for _, d := range deps {
		if d.p == nil {
			return nil, fmt.Errorf("%s client is required", d.name)
		}
	}
	if len(params.Subscribers) == 0 {
		return nil, errors.New("at least one subscriber is required")
	}
	for _, sub := range params.Subscribers {
		if sub.Name == "" || sub.Consumer == nil {
			return nil, errors.New("subscriber needs a name and a consumer")
		}
	}
	heartbeat := params.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Service{
		logg:        params.Logger,
		deps:        deps,
		subscribers: params.Subscribers,
		heartbeat:   heartbeat,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	for _, d := range s.deps {
		if err := d.p.Ping(ctx); err != nil {
			s.logg.Error(ctx, d.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", d.name, err)
		}
	}
	s.logg.Info(ctx, "worker dependencies ready")

	g, gctx := errgroup.WithContext(ctx)
	for _, sub := range s.subscribers {
		g.Go(func() error {
			subCtx := s.logg.WithField(gctx, "subscriber", sub.Name)
			s.logg.Info(subCtx, "subscriber started")
			err := sub.Consumer.Run(subCtx)
			if gctx.Err() != nil {
				return nil
			}
			// A consumer that returns while the worker is still meant to run is a failure.
			if err == nil {
				err = errors.New("exited without error")
			}
			return fmt.Errorf("subscriber %s: %w", sub.Name, err)
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.logg.Debug(gctx, "worker heartbeat")
			}
		}
	})

	if err := g.Wait(); err != nil {
		s.logg.Error(ctx, "worker stopping", err)
		return err
	}
	return ctx.Err()
}
