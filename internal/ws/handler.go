package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"pvivy/internal/log"
	"pvivy/internal/simulator"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler manages WebSocket connections and routes messages to the engine.
// Training runs outlive the request that started them and stop when ctx
// is cancelled.
type Handler struct {
	ctx    context.Context
	hub    *Hub
	engine *simulator.Engine
}

func NewHandler(ctx context.Context, hub *Hub, engine *simulator.Engine) *Handler {
	return &Handler{ctx: ctx, hub: hub, engine: engine}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnw("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.hub.Register(client)
	go client.writePump()

	h.sendCatalogLoaded(client)

	h.readPump(r.Context(), client)
}

func (h *Handler) readPump(ctx context.Context, c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnw("websocket read failed", "error", err)
			}
			return
		}

		h.handleMessage(ctx, c, msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *Client, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		log.Warnw("invalid message", "error", err)
		h.replyError(c, "", ErrorPayload{Error: "invalid message: " + err.Error(), Kind: KindRequest})
		return
	}

	switch env.Type {
	case TypeIVSimulate:
		var p SimulatePayload
		if !h.decode(c, env, &p) {
			return
		}
		res, err := h.engine.Simulate(p)
		if err != nil {
			h.replyError(c, env.ID, ErrorPayloadFrom(err))
			return
		}
		h.reply(c, TypeIVCurve, env.ID, res)

	case TypeIVDetect:
		var p DetectPayload
		if !h.decode(c, env, &p) {
			return
		}
		res, err := h.engine.Detect(ctx, p)
		if err != nil {
			h.replyError(c, env.ID, ErrorPayloadFrom(err))
			return
		}
		h.reply(c, TypeIVAnomaly, env.ID, res)

	case TypeTrainStart:
		var p TrainStartPayload
		if len(env.Payload) > 0 && !h.decode(c, env, &p) {
			return
		}
		// Progress and completion reach every client through the bridge.
		go func(id string) {
			_, _, err := h.engine.Train(h.ctx, p.Validate)
			if errors.Is(err, simulator.ErrTrainingInProgress) {
				h.replyError(c, id, ErrorPayloadFrom(err))
			}
		}(env.ID)

	default:
		log.Warnw("unknown message type", "type", env.Type)
		h.replyError(c, env.ID, ErrorPayload{Error: "unknown message type " + env.Type, Kind: KindRequest})
	}
}

func (h *Handler) decode(c *Client, env Envelope, v any) bool {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		log.Warnw("invalid payload", "type", env.Type, "error", err)
		h.replyError(c, env.ID, ErrorPayload{Error: "invalid " + env.Type + " payload: " + err.Error(), Kind: KindRequest})
		return false
	}
	return true
}

func (h *Handler) reply(c *Client, msgType, id string, payload any) {
	msg, err := NewReply(msgType, id, payload)
	if err != nil {
		log.Errorw("encoding reply", "type", msgType, "error", err)
		return
	}
	h.hub.Send(c, msg)
}

func (h *Handler) replyError(c *Client, id string, p ErrorPayload) {
	h.reply(c, TypeError, id, p)
}

func (h *Handler) catalogLoadedMessage() ([]byte, error) {
	byTech := h.engine.Catalog().ByTechnology()
	techs := make(map[string]int, len(byTech))
	for t, params := range byTech {
		techs[string(t)] = len(params)
	}

	payload := CatalogLoadedPayload{
		Modules:      h.engine.Catalog().Len(),
		Technologies: techs,
	}
	if m := h.engine.Detector().Current(); m != nil {
		payload.ModelID = m.ID.String()
	}
	return NewEnvelope(TypeCatalogLoaded, payload)
}

func (h *Handler) sendCatalogLoaded(c *Client) {
	msg, err := h.catalogLoadedMessage()
	if err != nil {
		log.Errorw("encoding catalog:loaded", "error", err)
		return
	}
	h.hub.Send(c, msg)
}
