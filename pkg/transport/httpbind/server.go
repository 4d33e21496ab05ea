/*
Package httpbind exposes a Request Handler over HTTP: a unary JSON-RPC
endpoint for the eight request/response methods, and an SSE endpoint that
streams the two methods whose result is an event channel
(message/stream, tasks/resubscribe).
*/
package httpbind

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/errors"
	"github.com/theapemachine/a2a-go/pkg/jsonrpc"
	"github.com/theapemachine/a2a-go/pkg/push"
	"github.com/theapemachine/a2a-go/pkg/service"
	"github.com/theapemachine/a2a-go/pkg/service/sse"
)

// Server binds a Request Handler to fiber's HTTP transport.
type Server struct {
	app        *fiber.App
	handler    *service.Handler
	dispatcher *jsonrpc.Dispatcher
	broker     *sse.SSEBroker
	card       *a2a.AgentCard
	senderAuth *push.SenderAuth
}

func NewServer(handler *service.Handler, card *a2a.AgentCard, senderAuth *push.SenderAuth) *Server {
	srv := &Server{
		app: fiber.New(fiber.Config{
			AppName:           card.Name,
			ServerHeader:      "A2A-Go-Server",
			StreamRequestBody: true,
		}),
		handler:    handler,
		dispatcher: jsonrpc.NewDispatcher(),
		broker:     sse.NewSSEBroker(),
		card:       card,
		senderAuth: senderAuth,
	}

	srv.registerUnaryMethods()
	srv.routes()

	return srv
}

func (srv *Server) routes() {
	srv.app.Use(logger.New(logger.Config{
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/events"
		},
	}), healthcheck.NewHealthChecker())

	srv.app.Get("/", func(ctx fiber.Ctx) error { return ctx.SendString("OK") })
	srv.app.Get("/.well-known/agent.json", func(ctx fiber.Ctx) error { return ctx.JSON(srv.card) })
	srv.app.Get("/events", srv.handleEvents)
	srv.app.Post("/rpc", srv.handleRPC)

	if srv.senderAuth != nil {
		srv.app.Get("/.well-known/jwks.json", fiberadaptor.HTTPHandler(srv.senderAuth.JWKSHandler()))
	}
}

func (srv *Server) Listen(addr string) error {
	return srv.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (srv *Server) Shutdown() error {
	return srv.app.Shutdown()
}

func (srv *Server) handleEvents(ctx fiber.Ctx) error {
	broker := srv.broker
	if taskID := ctx.Query("taskId"); taskID != "" {
		if taskBroker := srv.broker.GetOrCreateTaskBroker(taskID); taskBroker != nil {
			broker = taskBroker
		}
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		broker.Subscribe(w, r)
	}

	return fiberadaptor.HTTPHandler(http.HandlerFunc(handler))(ctx)
}

// registerUnaryMethods wires the eight request/response A2A methods onto
// the Dispatcher; message/stream and tasks/resubscribe are handled
// directly in handleRPC since their result is a live event channel, not a
// single JSON value.
func (srv *Server) registerUnaryMethods() {
	d := srv.dispatcher

	d.Register("message/send", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params a2a.MessageSendParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.ErrInvalidParams.WithMessagef("%s", err)
		}
		return srv.handler.OnSendMessage(ctx, params, nil)
	})

	d.Register("tasks/get", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params a2a.TaskQueryParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.ErrInvalidParams.WithMessagef("%s", err)
		}
		return srv.handler.OnGetTask(ctx, params)
	})

	d.Register("tasks/cancel", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params a2a.TaskIDParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.ErrInvalidParams.WithMessagef("%s", err)
		}
		return srv.handler.OnCancelTask(ctx, params)
	})

	d.Register("tasks/pushNotificationConfig/set", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params a2a.TaskPushNotificationConfig
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.ErrInvalidParams.WithMessagef("%s", err)
		}
		return srv.handler.OnSetTaskPushConfig(ctx, params)
	})

	d.Register("tasks/pushNotificationConfig/get", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params a2a.TaskPushConfigParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.ErrInvalidParams.WithMessagef("%s", err)
		}
		return srv.handler.OnGetTaskPushConfig(ctx, params)
	})

	d.Register("tasks/pushNotificationConfig/list", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params a2a.TaskIDParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.ErrInvalidParams.WithMessagef("%s", err)
		}
		return srv.handler.OnListTaskPushConfig(ctx, params)
	})

	d.Register("tasks/pushNotificationConfig/delete", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params a2a.TaskPushConfigParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, errors.ErrInvalidParams.WithMessagef("%s", err)
		}
		return nil, srv.handler.OnDeleteTaskPushConfig(ctx, params)
	})

	d.Register("agent/getAuthenticatedExtendedCard", func(ctx context.Context, raw json.RawMessage) (any, error) {
		return srv.handler.OnGetAuthenticatedExtendedCard(ctx)
	})
}

func (srv *Server) handleRPC(ctx fiber.Ctx) error {
	ctx.Set("Content-Type", "application/json")

	body := ctx.Body()

	var probe jsonrpc.Request
	if err := json.Unmarshal(body, &probe); err == nil {
		switch probe.Method {
		case "message/stream":
			return srv.handleStream(ctx, probe.ID, func() (<-chan a2a.Event, func(), error) {
				var params a2a.MessageSendParams
				if err := json.Unmarshal(probe.Params, &params); err != nil {
					return nil, nil, errors.ErrInvalidParams.WithMessagef("%s", err)
				}
				return srv.handler.OnSendMessageStream(ctx.Context(), params, nil)
			})
		case "tasks/resubscribe":
			return srv.handleStream(ctx, probe.ID, func() (<-chan a2a.Event, func(), error) {
				var params a2a.TaskIDParams
				if err := json.Unmarshal(probe.Params, &params); err != nil {
					return nil, nil, errors.ErrInvalidParams.WithMessagef("%s", err)
				}
				return srv.handler.OnResubscribe(ctx.Context(), params)
			})
		}
	}

	resp := srv.dispatcher.Dispatch(ctx.Context(), body)
	if resp == nil {
		return ctx.SendStatus(fiber.StatusNoContent)
	}
	return ctx.Status(fiber.StatusOK).Send(resp)
}

// handleStream drains the first event synchronously (so the RPC response
// carries an immediate snapshot) and forwards the rest to a per-task SSE
// broker that /events?taskId=... subscribes to.
func (srv *Server) handleStream(ctx fiber.Ctx, requestID any, start func() (<-chan a2a.Event, func(), error)) error {
	events, cancel, err := start()
	if err != nil {
		return srv.writeError(ctx, requestID, err)
	}

	first, ok := <-events
	if !ok {
		cancel()
		return srv.writeResult(ctx, requestID, nil)
	}

	info := taskInfoOf(first)

	target := srv.broker
	if info.TaskID != "" {
		target = srv.broker.GetOrCreateTaskBroker(info.TaskID)
	}

	if target != nil {
		if err := target.BroadcastWithEventType(string(a2a.EventKindOf(first)), first); err != nil {
			log.Error("failed to broadcast first stream event", "error", err)
		}
	}

	go func() {
		defer cancel()
		for event := range events {
			if target != nil {
				if err := target.BroadcastWithEventType(string(a2a.EventKindOf(event)), event); err != nil {
					log.Error("failed to broadcast stream event", "error", err)
				}
			}
		}
		if info.TaskID != "" {
			srv.broker.CloseTaskBroker(info.TaskID)
		}
	}()

	return srv.writeResult(ctx, requestID, first)
}

func taskInfoOf(event a2a.Event) a2a.TaskInfo {
	if provider, ok := event.(a2a.TaskInfoProvider); ok {
		return provider.TaskInfo()
	}
	return a2a.TaskInfo{}
}

func (srv *Server) writeResult(ctx fiber.Ctx, requestID any, result any) error {
	return ctx.Status(fiber.StatusOK).JSON(jsonrpc.NewResultResponse(requestID, result))
}

func (srv *Server) writeError(ctx fiber.Ctx, requestID any, err error) error {
	if rpcErr, ok := err.(*errors.RpcError); ok {
		return ctx.Status(fiber.StatusOK).JSON(jsonrpc.NewErrorResponse(requestID, rpcErr))
	}
	log.Error("request failed", "error", err)
	return ctx.Status(fiber.StatusOK).JSON(jsonrpc.NewErrorResponse(requestID, errors.ErrInternal.WithMessagef("%s", err)))
}
