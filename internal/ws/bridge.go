package ws

import (
	"pvivy/internal/log"
	"pvivy/internal/simulator"
)

// Bridge implements simulator.Callback and broadcasts training events to
// every connected client.
type Bridge struct {
	hub *Hub
}

func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

// OnTrainProgress forwards roughly one event per percent of the run, plus
// the final one.
func (b *Bridge) OnTrainProgress(p simulator.TrainProgress) {
	step := max(p.Total/100, 1)
	if p.Done%step != 0 && p.Done != p.Total {
		return
	}
	b.broadcast(TypeTrainProgress, TrainProgressPayload{RunID: p.RunID, Done: p.Done, Total: p.Total})
}

func (b *Bridge) OnTrainDone(r simulator.TrainResult) {
	b.broadcast(TypeTrainDone, TrainDoneFromResult(r))
}

func (b *Bridge) broadcast(msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		log.Errorw("encoding broadcast", "type", msgType, "error", err)
		return
	}
	n := b.hub.Broadcast(msg)
	log.Debugw("training event broadcast", "type", msgType, "clients", n)
}
