package core

import (
	"fmt"
	"net/http"
)

func (s *Server) handleScheduleStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, APIResponse{Data: s.Scheduler.Status()})
}

func (s *Server) handleScheduleReload(w http.ResponseWriter, r *http.Request) {
	stores := s.Stores.List()
	for _, cfg := range stores {
		s.Scheduler.ReloadStoreSchedule(cfg)
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{
		"message": fmt.Sprintf("schedule reloaded for %d stores", len(stores)),
	}})
}
