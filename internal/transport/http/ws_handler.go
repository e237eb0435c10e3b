package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"psych-assessment-service/internal/app"
)

// WSHandler streams builder drafts over a websocket. Clients send builder
// actions and receive the draft state after every change, including changes
// made by other connections editing the same draft.
type WSHandler struct {
	service  *app.BuilderService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.BuilderService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS attaches the connection to ?draftId=, starting a new draft when it is empty.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	draftID := r.URL.Query().Get("draftId")
	if draftID == "" {
		st, err := h.service.Start(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		draftID = st.ID
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), draftID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// a single writer owns the connection; everything else goes through send
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// unblocks ReadJSON so the read loop ends too
				conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case st, ok := <-updates:
				if !ok {
					// draft discarded
					deliver(send, closeSignals, writerDone, outboundMessage[any]{Type: "discarded", Payload: map[string]string{"id": draftID}})
					return
				}
				if !deliver(send, closeSignals, writerDone, outboundMessage[any]{Type: "state", Payload: st}) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		action, err := app.DecodeBuilderAction(inbound.Type, inbound.Payload)
		if err == nil {
			// the resulting state reaches this connection through its subscription
			_, err = h.service.Dispatch(r.Context(), draftID, action)
		}
		if err == nil {
			continue
		}
		if !deliver(send, nil, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// deliver queues msg for the writer. It reports false when the connection is
// closing or the writer has exited, in which case msg is dropped.
func deliver(send chan<- outboundMessage[any], closing, writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-closing:
		return false
	case <-writerDone:
		return false
	}
}
