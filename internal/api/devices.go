package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-presence/internal/device"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// DeviceListResponse is returned by GET /devices.
type DeviceListResponse struct {
	Room    string            `json:"room"`
	Count   int               `json:"count"`
	Devices []presence.Record `json:"devices"`
}

// handleListDevices returns the last emitted record of every device.
//
// Query parameters:
//   - state: home or not_home, filters by classification
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("state")
	if filter != "" && filter != string(device.PresenceHome) && filter != string(device.PresenceNotHome) {
		writeBadRequest(w, "state must be home or not_home")
		return
	}

	records := s.store.List()
	if filter != "" {
		filtered := make([]presence.Record, 0, len(records))
		for _, rec := range records {
			if string(rec.State) == filter {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	writeJSON(w, http.StatusOK, DeviceListResponse{
		Room:    s.room,
		Count:   len(records),
		Devices: records,
	})
}

// handleGetDevice returns the last emitted record of one device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rec, ok := s.store.Get(name)
	if !ok {
		writeNotFound(w, "device not found or not yet emitted")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
