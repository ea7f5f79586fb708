package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"attendance.service/internal/api/handler"
	"attendance.service/internal/core"
)

// NewRouter sets up the gorilla/mux router and defines all API routes.
func NewRouter(attendance *core.AttendanceService, correction *core.CorrectionService) *mux.Router {

	h := handler.AttendanceHandler{
		Attendance: attendance,
		Correction: correction,
	}

	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/attendance/clock-in", h.ClockIn).Methods(http.MethodPost)
	api.HandleFunc("/attendance/break-start", h.BreakStart).Methods(http.MethodPost)
	api.HandleFunc("/attendance/break-end", h.BreakEnd).Methods(http.MethodPost)
	api.HandleFunc("/attendance/clock-out", h.ClockOut).Methods(http.MethodPost)
	api.HandleFunc("/attendance/today", h.GetToday).Methods(http.MethodGet)
	api.HandleFunc("/attendance/{id:[0-9]+}", h.GetRecord).Methods(http.MethodGet)
	api.HandleFunc("/attendance", h.ListMonth).Methods(http.MethodGet)
	api.HandleFunc("/attendance/{id:[0-9]+}/corrections", h.SubmitCorrection).Methods(http.MethodPost)
	api.HandleFunc("/corrections", h.ListCorrections).Methods(http.MethodGet)
	api.HandleFunc("/corrections/{id}", h.GetCorrection).Methods(http.MethodGet)
	api.HandleFunc("/corrections/{id}/approve", h.ApproveCorrection).Methods(http.MethodPost)
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}
