/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package notify

import (
	"context"
	"sync"
	"time"

	"referral-earnings-go/internal/metrics"
	"referral-earnings-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sink receives earnings events from the publisher.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event models.EarningsEvent) error
}

// Publisher decouples committed purchases from realtime delivery. Publish
// never blocks; a full queue drops the event. Delivery is at-most-once.
type Publisher struct {
	queue           chan models.EarningsEvent
	sinks           []Sink
	deliveryTimeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewPublisher creates a publisher fanning out to the given sinks.
func NewPublisher(cfg models.NotifierConfig, sinks ...Sink) *Publisher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Publisher{
		queue:           make(chan models.EarningsEvent, queueSize),
		sinks:           sinks,
		deliveryTimeout: timeout,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Publish enqueues the event and reports whether it was accepted.
func (p *Publisher) Publish(event models.EarningsEvent) bool {
	select {
	case p.queue <- event:
		return true
	default:
		metrics.EventsPublished.WithLabelValues("queue", "dropped").Inc()
		zap.L().Warn("Event queue full, dropping earnings event",
			zap.String("user_id", event.BeneficiaryId),
			zap.String("purchase_id", event.PurchaseId),
			zap.Int("level", event.Level))
		return false
	}
}

// Start launches the delivery loop.
func (p *Publisher) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		zap.L().Info("Starting earnings publisher", zap.Int("sinks", len(p.sinks)), zap.Int("queue_size", cap(p.queue)))
		go p.deliverLoop(ctx)
	})
}

// Stop gracefully stops the publisher after delivering what is already queued.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		zap.L().Info("Stopping earnings publisher")
		close(p.stopChan)
		p.startOnce.Do(func() { close(p.doneChan) })
		<-p.doneChan
		zap.L().Info("Earnings publisher stopped")
	})
}

// deliverLoop runs the main delivery loop
func (p *Publisher) deliverLoop(ctx context.Context) {
	defer close(p.doneChan)

	for {
		select {
		case event := <-p.queue:
			p.fanOut(ctx, event)
		case <-p.stopChan:
			p.drain(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	for {
		select {
		case event := <-p.queue:
			p.fanOut(ctx, event)
		default:
			return
		}
	}
}

// fanOut delivers one event to every sink concurrently. Sink errors are
// logged and counted, never propagated.
func (p *Publisher) fanOut(ctx context.Context, event models.EarningsEvent) {
	var g errgroup.Group
	for _, sink := range p.sinks {
		sink := sink
		g.Go(func() error {
			deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.deliveryTimeout)
			defer cancel()

			if err := sink.Deliver(deliverCtx, event); err != nil {
				metrics.EventsPublished.WithLabelValues(sink.Name(), "failed").Inc()
				zap.L().Warn("Failed to deliver earnings event",
					zap.String("sink", sink.Name()),
					zap.String("user_id", event.BeneficiaryId),
					zap.String("purchase_id", event.PurchaseId),
					zap.Error(err))
				return nil
			}
			metrics.EventsPublished.WithLabelValues(sink.Name(), "delivered").Inc()
			return nil
		})
	}
	_ = g.Wait()
}
