package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/NotCoffee418/lunix_gateway/pkg/lookup"
	"github.com/NotCoffee418/lunix_gateway/pkg/measurement"
	"github.com/NotCoffee418/lunix_gateway/pkg/sensors"
	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Lunix Sensor Gateway API",
		"status":  "running",
		"sensors": s.store.Len(),
	})
}

// Lists the latest value of every quantity that has reported at least once.
// Never blocks.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	readings := make([]*types.SensorReading, 0)
	for i := range s.store.Len() {
		sensor, err := s.store.Sensor(i)
		if err != nil {
			continue
		}
		for _, q := range types.Quantities() {
			raw, ts := sensor.Snapshot(q)
			if ts == 0 {
				continue
			}
			readings = append(readings, types.NewSensorReading(i, q, lookup.Format(q, raw), ts))
		}
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	index, q, ok := parseSelector(w, r)
	if !ok {
		return
	}
	h, err := measurement.Open(s.store, index, q, s.handleOptions(r)...)
	s.serveHandle(w, r, h, err)
}

func (s *Server) handleReadMinor(w http.ResponseWriter, r *http.Request) {
	minor, err := strconv.Atoi(r.PathValue("minor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "minor must be a number")
		return
	}
	h, err := measurement.OpenMinor(s.store, minor, s.handleOptions(r)...)
	s.serveHandle(w, r, h, err)
}

func (s *Server) handleOptions(r *http.Request) []measurement.Option {
	opts := []measurement.Option{measurement.WithMetrics(s.metrics)}
	if nb := r.URL.Query().Get("nonblock"); nb == "1" || nb == "true" {
		opts = append(opts, measurement.WithNonBlocking())
	}
	return opts
}

// Runs one read cycle on a freshly opened handle and writes the text.
func (s *Server) serveHandle(w http.ResponseWriter, r *http.Request, h *measurement.Handle, openErr error) {
	if openErr != nil {
		writeError(w, http.StatusNotFound, openErr.Error())
		return
	}
	defer h.Close()

	text, err := h.ReadValue(r.Context())
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Sample-Timestamp", strconv.FormatUint(uint64(h.LastObserved()), 10))
		w.Write([]byte(text))
	case errors.Is(err, measurement.ErrWouldBlock):
		http.Error(w, "would block", http.StatusServiceUnavailable)
	case errors.Is(err, measurement.ErrInterrupted):
		// Client went away, nobody to answer.
		log.Printf("Read of %s interrupted: %v", types.DeviceName(h.SensorIndex(), h.Quantity()), err)
	case errors.Is(err, sensors.ErrStoreClosed):
		http.Error(w, "gateway shutting down", http.StatusServiceUnavailable)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseSelector reads {node} and {quantity}, answering 404 itself when
// the path does not name a device.
func parseSelector(w http.ResponseWriter, r *http.Request) (int, types.Quantity, bool) {
	index, err := strconv.Atoi(r.PathValue("node"))
	if err != nil || index < 0 {
		writeError(w, http.StatusNotFound, "unknown sensor "+strconv.Quote(r.PathValue("node")))
		return 0, 0, false
	}
	q, err := types.ParseQuantity(r.PathValue("quantity"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return 0, 0, false
	}
	return index, q, true
}
