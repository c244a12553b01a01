package appointments

import (
	"time"

	"healsync-portal/internal/models"
)

// Stats are the dashboard counters.
type Stats struct {
	Total     int `json:"total"`
	Booked    int `json:"booked"`
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	NoShow    int `json:"noShow"`
	Today     int `json:"today"`
	Upcoming  int `json:"upcoming"`
}

// Summarize counts list by status. Today and Upcoming only count open
// (booked or confirmed) appointments.
func Summarize(list []models.Appointment, now time.Time) Stats {
	var st Stats
	y, m, d := now.UTC().Date()
	for _, a := range list {
		st.Total++
		switch a.Status {
		case models.StatusBooked:
			st.Booked++
		case models.StatusConfirmed:
			st.Confirmed++
		case models.StatusCompleted:
			st.Completed++
		case models.StatusCancelled:
			st.Cancelled++
		case models.StatusNoShow:
			st.NoShow++
		}
		if a.Status != models.StatusBooked && a.Status != models.StatusConfirmed {
			continue
		}
		if ay, am, ad := a.StartTime.UTC().Date(); ay == y && am == m && ad == d {
			st.Today++
		}
		if a.Upcoming(now) {
			st.Upcoming++
		}
	}
	return st
}

// Partition splits list into upcoming open appointments and everything else (history).
func Partition(list []models.Appointment, now time.Time) (upcoming, past []models.Appointment) {
	for _, a := range list {
		if (a.Status == models.StatusBooked || a.Status == models.StatusConfirmed) && now.Before(a.End()) {
			upcoming = append(upcoming, a)
		} else {
			past = append(past, a)
		}
	}
	return upcoming, past
}
