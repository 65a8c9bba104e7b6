package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NotCoffee418/lunix_gateway/pkg/measurement"
	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

const writeWait = 10 * time.Second

// Streams every fresh sample of one quantity as a SensorReading message.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	index, q, ok := parseSelector(w, r)
	if !ok {
		return
	}
	h, err := measurement.Open(s.store, index, q, measurement.WithMetrics(s.metrics))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	defer h.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client frames so close and ping frames are processed; any
	// read error means the client is gone.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	device := types.DeviceName(index, q)
	log.Printf("WebSocket client subscribed to %s", device)
	for {
		text, err := h.ReadValue(ctx)
		if err != nil {
			if !errors.Is(err, measurement.ErrInterrupted) {
				log.Printf("Stream of %s ended: %v", device, err)
			}
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		}

		reading := types.NewSensorReading(index, q, text, h.LastObserved())
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, reading.ToJsonBytes()); err != nil {
			log.Printf("WebSocket write to %s failed: %v", device, err)
			return
		}
	}
}
