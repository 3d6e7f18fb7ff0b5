// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBusClosed is returned when operating on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// ErrSubscriptionNotFound is returned when unsubscribing with an unknown ID.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// MemoryBusConfig configures the in-memory bus.
type MemoryBusConfig struct {
	HistoryMaxEvents int
	HistoryMaxAge    time.Duration
}

// MemoryBus is an in-memory Bus implementation with bounded history.
type MemoryBus struct {
	mu            sync.RWMutex
	subscriptions map[SubscriptionID]*subscription
	closed        atomic.Bool
	nextID        uint64

	histMu     sync.RWMutex
	history    []Event
	maxEvents  int
	maxAge     time.Duration
	stopPruner chan struct{}
	pruneWG    sync.WaitGroup
}

type subscription struct {
	pattern string
	handler Handler
	ch      chan Event
}

// NewMemoryBus creates an in-memory event bus.
func NewMemoryBus(cfg MemoryBusConfig) *MemoryBus {
	if cfg.HistoryMaxEvents <= 0 {
		cfg.HistoryMaxEvents = 10000
	}
	if cfg.HistoryMaxAge <= 0 {
		cfg.HistoryMaxAge = time.Hour
	}

	bus := &MemoryBus{
		subscriptions: make(map[SubscriptionID]*subscription),
		maxEvents:     cfg.HistoryMaxEvents,
		maxAge:        cfg.HistoryMaxAge,
		stopPruner:    make(chan struct{}),
	}

	// Background pruner enforces max age
	interval := cfg.HistoryMaxAge / 10
	if interval < time.Minute {
		interval = time.Minute
	}
	bus.pruneWG.Add(1)
	go func() {
		defer bus.pruneWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-bus.stopPruner:
				return
			case <-ticker.C:
				bus.prune()
			}
		}
	}()

	return bus
}

// Publish emits an event to all matching subscribers.
func (bus *MemoryBus) Publish(ctx context.Context, event Event) error {
	if bus.closed.Load() {
		return ErrBusClosed
	}

	if event.ID == "" {
		event.ID = bus.generateID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	bus.addHistory(event)

	bus.mu.RLock()
	subs := make([]*subscription, 0, len(bus.subscriptions))
	for _, sub := range bus.subscriptions {
		subs = append(subs, sub)
	}
	bus.mu.RUnlock()

	for _, sub := range subs {
		if !MatchPattern(event.Type, sub.pattern) {
			continue
		}
		if sub.ch != nil {
			select {
			case sub.ch <- event:
			default:
				log.Printf("events: dropped %s - subscriber buffer full", event.Type)
			}
			continue
		}
		// Synchronous call with panic protection
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("events: handler panic for %s: %v", event.Type, r)
				}
			}()
			sub.handler(ctx, event)
		}()
	}

	return nil
}

// Subscribe registers a synchronous handler for events matching pattern.
func (bus *MemoryBus) Subscribe(pattern string, handler Handler) (SubscriptionID, error) {
	if bus.closed.Load() {
		return "", ErrBusClosed
	}
	if pattern == "" {
		return "", errors.New("empty pattern")
	}

	id := SubscriptionID(bus.generateID())
	bus.mu.Lock()
	bus.subscriptions[id] = &subscription{pattern: pattern, handler: handler}
	bus.mu.Unlock()
	return id, nil
}

// SubscribeChan registers a buffered channel subscription.
func (bus *MemoryBus) SubscribeChan(pattern string, buffer int) (SubscriptionID, <-chan Event, error) {
	if bus.closed.Load() {
		return "", nil, ErrBusClosed
	}
	if pattern == "" {
		return "", nil, errors.New("empty pattern")
	}
	if buffer <= 0 {
		buffer = 100
	}

	id := SubscriptionID(bus.generateID())
	ch := make(chan Event, buffer)
	bus.mu.Lock()
	bus.subscriptions[id] = &subscription{pattern: pattern, ch: ch}
	bus.mu.Unlock()
	return id, ch, nil
}

// Unsubscribe removes a subscription. Channel subscriptions have their
// channel closed so range loops terminate.
func (bus *MemoryBus) Unsubscribe(id SubscriptionID) error {
	bus.mu.Lock()
	sub, ok := bus.subscriptions[id]
	if !ok {
		bus.mu.Unlock()
		return ErrSubscriptionNotFound
	}
	delete(bus.subscriptions, id)
	bus.mu.Unlock()

	if sub.ch != nil {
		close(sub.ch)
	}
	return nil
}

// History retrieves past events matching filter, oldest first.
func (bus *MemoryBus) History(filter Filter) []Event {
	bus.histMu.RLock()
	defer bus.histMu.RUnlock()

	result := make([]Event, 0)
	for _, event := range bus.history {
		if !bus.matchesFilter(event, filter) {
			continue
		}
		result = append(result, event)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}
	return result
}

// Close shuts down the bus and closes all channel subscriptions.
func (bus *MemoryBus) Close() error {
	if bus.closed.Swap(true) {
		return nil
	}
	close(bus.stopPruner)
	bus.pruneWG.Wait()

	bus.mu.Lock()
	for id, sub := range bus.subscriptions {
		if sub.ch != nil {
			close(sub.ch)
		}
		delete(bus.subscriptions, id)
	}
	bus.mu.Unlock()
	return nil
}

func (bus *MemoryBus) matchesFilter(event Event, filter Filter) bool {
	if len(filter.Types) > 0 {
		matched := false
		for _, pattern := range filter.Types {
			if MatchPattern(event.Type, pattern) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if filter.Window != "" && event.Window != filter.Window {
		return false
	}
	if !filter.Since.IsZero() && !event.Timestamp.After(filter.Since) {
		return false
	}
	return true
}

func (bus *MemoryBus) addHistory(event Event) {
	bus.histMu.Lock()
	defer bus.histMu.Unlock()

	bus.history = append(bus.history, event)
	if len(bus.history) > bus.maxEvents {
		bus.history = bus.history[len(bus.history)-bus.maxEvents:]
	}
}

func (bus *MemoryBus) prune() {
	cutoff := time.Now().Add(-bus.maxAge)

	bus.histMu.Lock()
	defer bus.histMu.Unlock()

	idx := 0
	for idx < len(bus.history) && bus.history[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		bus.history = bus.history[idx:]
	}
}

func (bus *MemoryBus) generateID() string {
	seq := atomic.AddUint64(&bus.nextID, 1)
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "evt-" + strconv.FormatUint(seq, 10)
	}
	return "evt-" + strconv.FormatUint(seq, 10) + "-" + hex.EncodeToString(buf)
}
