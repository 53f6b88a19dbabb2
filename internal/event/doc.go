// Package event carries session lifecycle events to observers.
//
// The session publishes an Event for every LLM request, streamed text,
// reasoning fragment, tool call, tool result, stream end, turn end,
// interrupt, and new conversation. Observers subscribe to a Bus and read
// from a bounded channel:
//
//	bus := event.NewBus(0)
//	events, unsubscribe := bus.Subscribe()
//	defer unsubscribe()
//	for e := range events {
//		fmt.Println(e.Kind)
//	}
//
// Publishing never blocks the session. A subscriber whose queue is full
// misses events instead of applying back-pressure.
//
// Bridge re-publishes events as JSON watermill messages on DebugTopic; the
// debug server streams them to browsers over SSE.
package event
