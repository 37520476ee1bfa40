/*
Package event provides a type-safe, pub/sub event system for the agent runtime.

The event system enables decoupled communication between different components of the
runtime by allowing publishers to emit events and subscribers to react to them without
direct dependencies.

# Architecture

The package is built on top of watermill's gochannel for infrastructure while maintaining
direct-call semantics to preserve type information. It provides both synchronous and
asynchronous event publishing patterns.

# Event Types

The system supports several event categories:

Session Events:
  - session.created: New session created
  - session.updated: Session modified
  - session.deleted: Session removed

Thread Events:
  - thread.created: New thread created
  - thread.event_appended: A new Event was persisted to a thread

Task Events:
  - task.created: New task created
  - task.updated: Task status, priority or assignment changed
  - task.note_added: A note was appended to a task

File Events:
  - file.edited: File was modified

Approval Events:
  - approval.required: A tool call needs a human decision
  - approval.resolved: An approval request was decided (allow_once/allow_session/deny)

Agent Events:
  - agent.state_changed: The turn state machine transitioned

# Basic Usage

Publishing events:

	// Asynchronous publishing (non-blocking)
	event.Publish(event.Event{
		Type: event.ThreadEventAppended,
		Data: event.ThreadEventAppendedData{
			ThreadID: thread.ID,
			Event:    appended,
		},
	})

	// Synchronous publishing (blocking until all subscribers complete)
	event.PublishSync(event.Event{
		Type: event.TaskUpdated,
		Data: event.TaskUpdatedData{Task: task},
	})

Subscribing to specific events:

	unsubscribe := event.Subscribe(event.ThreadEventAppended, func(e event.Event) {
		data := e.Data.(event.ThreadEventAppendedData)
		log.Info().Str("thread", data.ThreadID).Msg("thread event appended")
	})
	defer unsubscribe()

Subscribing to all events:

	unsubscribe := event.SubscribeAll(func(e event.Event) {
		log.Debug().Str("type", string(e.Type)).Msg("event received")
	})
	defer unsubscribe()

# Subscriber Safety Guidelines

When using PublishSync, subscribers are called synchronously in the publisher's
goroutine. To avoid blocking or deadlocks, subscribers MUST:

  - Complete quickly (avoid long-running operations)
  - Use non-blocking channel sends (select with default case)
  - Never call Publish/PublishSync from within a subscriber (no re-entrant publishing)
  - Never acquire locks that the publisher might hold

Example of a safe subscriber:

	event.SubscribeAll(func(e event.Event) {
	    select {
	    case eventChan <- e:
	        // Event sent successfully
	    default:
	        // Channel full, drop event to avoid blocking
	        log.Warn().Str("type", string(e.Type)).Msg("event dropped, channel full")
	    }
	})

# Custom Event Bus

For testing or isolation, you can create custom bus instances:

	bus := event.NewBus()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.SessionCreated, handler)
	bus.PublishSync(event.Event{Type: event.SessionCreated, Data: data})

# Testing

The package provides utilities for testing:

	// Reset global bus state (use in test cleanup)
	event.Reset()

# Thread Safety

The event bus is thread-safe and can be used concurrently from multiple goroutines.
Both publishing and subscribing operations are protected by internal synchronization.

# Performance Considerations

- Asynchronous publishing (Publish) creates a goroutine per subscriber per event
- Synchronous publishing (PublishSync) calls all subscribers in the current goroutine
- Use PublishSync for critical events where ordering matters (e.g. agent.state_changed)
- Use Publish for fire-and-forget notifications
- Consider subscriber performance impact on PublishSync calls

# Integration with Watermill

The package uses watermill's gochannel internally, providing access to the underlying
pubsub infrastructure for advanced use cases:

	pubsub := event.PubSub()
	// Use watermill features like middleware, routing, etc.

This allows future migration to distributed message brokers if needed while maintaining
the current API.
*/
package event
