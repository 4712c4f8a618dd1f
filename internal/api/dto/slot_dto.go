package dto

import "time"

// CreateSlotRequest payload.
type CreateSlotRequest struct {
	TechnicianID string    `json:"technician_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
}

// RecurringSlotsRequest tiles matching weekdays in a date range with
// fixed-duration slots.
type RecurringSlotsRequest struct {
	TechnicianID        string    `json:"technician_id"`
	From                time.Time `json:"from"`
	To                  time.Time `json:"to"`
	Weekdays            []int     `json:"weekdays"`
	WindowStartHour     int       `json:"window_start_hour"`
	WindowStartMinute   int       `json:"window_start_minute"`
	WindowEndHour       int       `json:"window_end_hour"`
	WindowEndMinute     int       `json:"window_end_minute"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
}

// SlotResponse represents a bookable window.
type SlotResponse struct {
	ID             string    `json:"id"`
	TechnicianID   string    `json:"technician_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	IsReserved     bool      `json:"is_reserved"`
	InterventionID *string   `json:"intervention_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// SlotPageResponse is the paginated all-slots view with counters.
type SlotPageResponse struct {
	Slots    []SlotResponse `json:"slots"`
	Total    int64          `json:"total"`
	Reserved int64          `json:"reserved"`
	Free     int64          `json:"free"`
}
