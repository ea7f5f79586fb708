package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// A simple struct to capture the incoming event data
type CorrectionApprovedEvent struct {
	RequestID    string    `json:"requestId"`
	AttendanceID int64     `json:"attendanceId"`
	UserID       string    `json:"userId"`
	ApprovedBy   string    `json:"approvedBy"`
	ApprovedAt   time.Time `json:"approvedAt"`
}

func correctionHandler(w http.ResponseWriter, r *http.Request) {
	var event CorrectionApprovedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	log.Printf("Received approved correction %s for UserID: %s", event.RequestID, event.UserID)
	w.WriteHeader(http.StatusOK)
}

func main() {
	http.HandleFunc("/", correctionHandler)
	log.Println("Legacy API mock server starting on port 8081...")
	log.Fatal(http.ListenAndServe(":8081", nil))
}
