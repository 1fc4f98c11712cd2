package orchestration

import (
	"context"

	"github.com/riverbus/envelope/internal/esb/handler"
	"github.com/riverbus/envelope/internal/esb/message"
)

// Handler adapts a Sink to the queue runtime's handler.Handler contract
// (§4.6: the sink is "the queue's push-sync handler for orchestration
// events"), so it can be registered directly as a queue's HandleMessage.
type Handler struct {
	sink *Sink
}

// NewHandler wraps sink for registration against an orchestration-events
// queue.
func NewHandler(sink *Sink) *Handler {
	return &Handler{sink: sink}
}

// HandleAsync stamps the delivered message's id onto an Event, using its
// routing key as the orchestration key events are grouped and signaled by,
// and delegates to Sink.HandleEvent.
func (h *Handler) HandleAsync(ctx context.Context, msg *message.Message, hctx *handler.Context) handler.Result {
	ev := Event{
		EventID:          msg.MessageID.String(),
		OrchestrationKey: msg.RoutingKey,
		MessageID:        msg.MessageID,
		Payload:          msg.Body,
	}
	if err := h.sink.HandleEvent(ctx, ev); err != nil {
		return handler.Error("", err)
	}
	return handler.Completed()
}
