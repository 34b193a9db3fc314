/*
Package events provides an in-memory event broker for hostsaccel.

The broker broadcasts every published event to all subscribers over
buffered channels. It carries the lifecycle of hosts file changes so that
long-running commands (watch, apply) can log or react to them without the
session and watchdog knowing who listens.

# Architecture

	Publisher → Event Channel (buffer: 100)
	     ↓
	Broadcast Loop
	     ↓
	Subscriber Channels (buffer: 50 each)

# Event Types

	override.applied     managed block written (permanent or temporary)
	override.restored    pre-session content written back
	override.removed     managed block stripped for good
	remediation.fixed    watchdog installed new addresses for its target
	remediation.failed   watchdog found no valid candidate
	source.fallback      every remote source failed, cache or built-in used

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			log.Info(fmt.Sprintf("%s: %s", event.Type, event.Message))
		}
	}()

	broker.Publish(events.NewEvent(events.EventOverrideApplied, "temporary override applied", nil))

# Delivery

Publish never blocks. Events are dropped when the broker is stopped, when
its buffer is full, or when a subscriber's buffer is full. A nil *Broker is
valid and discards everything, so components can be built without one.
Delivery order per subscriber follows publish order.
*/
package events
