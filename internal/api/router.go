package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rfoxley/hearthsync/internal/mirror"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/session", s.handleSession)
		r.Get("/structures", s.handleListStructures)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleDeviceCounts)
			r.Route("/{category}", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/{id}", s.handleGetDevice)
			})
		})
	})

	return r
}

// handleHealth returns the server health and sync status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     s.version,
		"initialized": s.initialized(),
	})
}

// handleSession returns the authentication state.
func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	state := ""
	if s.session != nil {
		state = string(s.session.State())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": state,
	})
}

// structureResponse is the JSON shape for a mirrored structure.
type structureResponse struct {
	StructureID string `json:"structure_id"`
	Name        string `json:"name"`
	Away        string `json:"away"`
}

// handleListStructures returns all mirrored structures.
func (s *Server) handleListStructures(w http.ResponseWriter, _ *http.Request) {
	structures := s.registry.Structures()
	out := make([]structureResponse, 0, len(structures))
	for _, st := range structures {
		out = append(out, structureResponse{
			StructureID: st.ID,
			Name:        st.Name,
			Away:        string(st.Away),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"structures": out,
		"count":      len(out),
	})
}

// handleDeviceCounts returns per-category device counts.
func (s *Server) handleDeviceCounts(w http.ResponseWriter, _ *http.Request) {
	categories := mirror.AllCategories()
	counts := make(map[string]int, len(categories))
	for _, cat := range categories {
		counts[string(cat)] = s.registry.DeviceCount(cat)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"counts": counts,
	})
}

// deviceResponse is the JSON shape for a mirrored device.
type deviceResponse struct {
	DeviceID      string         `json:"device_id"`
	Name          string         `json:"name"`
	Category      string         `json:"category"`
	StructureID   string         `json:"structure_id"`
	StructureName string         `json:"structure_name,omitempty"`
	Capabilities  []string       `json:"capabilities"`
	State         map[string]any `json:"state"`
}

func toDeviceResponse(d mirror.Device) deviceResponse {
	resp := deviceResponse{
		DeviceID:     d.ID,
		Name:         d.Name,
		Category:     string(d.Category),
		StructureID:  d.StructureID,
		Capabilities: d.Capabilities,
		State:        d.State,
	}
	if d.Structure != nil {
		resp.StructureName = d.Structure.Name
	}
	return resp
}

// parseCategory validates the category URL parameter.
func parseCategory(r *http.Request) (mirror.Category, bool) {
	cat := mirror.Category(chi.URLParam(r, "category"))
	for _, known := range mirror.AllCategories() {
		if cat == known {
			return cat, true
		}
	}
	return "", false
}

// handleListDevices returns all mirrored devices in a category.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	cat, ok := parseCategory(r)
	if !ok {
		writeBadRequest(w, "unknown device category")
		return
	}

	devices := s.registry.Devices(cat)
	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": out,
		"count":   len(out),
	})
}

// handleGetDevice returns a single mirrored device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	cat, ok := parseCategory(r)
	if !ok {
		writeBadRequest(w, "unknown device category")
		return
	}

	device, err := s.registry.Device(cat, chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, toDeviceResponse(*device))
}
