package core

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sellerpilot/internal/types"
)

// Store responses marshal through types.StoreConfig, whose SecretString api
// key redacts itself, so credentials never appear in API output.

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, APIResponse{Data: s.Stores.List()})
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var cfg types.StoreConfig
	if err := DecodeJSON(w, r, &cfg); err != nil {
		Error(w, r, err)
		return
	}

	added, err := s.Stores.Add(cfg)
	if err != nil {
		Error(w, r, err)
		return
	}

	s.Scheduler.ReloadStoreSchedule(added)
	JSON(w, r, http.StatusCreated, APIResponse{Data: added})
}

func (s *Server) handleUpdateStore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var cfg types.StoreConfig
	if err := DecodeJSON(w, r, &cfg); err != nil {
		Error(w, r, err)
		return
	}

	updated, err := s.Stores.Update(name, cfg)
	if err != nil {
		Error(w, r, err)
		return
	}

	// A rename leaves jobs registered under the old name behind; drop them
	// before scheduling under the new one.
	if updated.Name != name {
		s.Scheduler.RemoveStoreJobs(name)
	}
	s.Scheduler.ReloadStoreSchedule(updated)
	JSON(w, r, http.StatusOK, APIResponse{Data: updated})
}

func (s *Server) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.Stores.Delete(name); err != nil {
		Error(w, r, err)
		return
	}

	s.Scheduler.RemoveStoreJobs(name)
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]bool{"deleted": true}})
}

type connectionTestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	cfg, err := s.Stores.Get(name)
	if err != nil {
		Error(w, r, err)
		return
	}

	if err := s.Runners.TestConnection(r.Context(), cfg); err != nil {
		JSON(w, r, http.StatusOK, APIResponse{Data: connectionTestResponse{
			Success: false,
			Message: err.Error(),
		}})
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: connectionTestResponse{
		Success: true,
		Message: "connection ok",
	}})
}

func (s *Server) handleTestAllConnections(w http.ResponseWriter, r *http.Request) {
	results := s.Stores.TestAllConnections(r.Context(), s.Runners.TestConnection)
	JSON(w, r, http.StatusOK, APIResponse{Data: results})
}
