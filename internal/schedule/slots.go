package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"healsync-portal/internal/logging"
	"healsync-portal/internal/models"
)

const defaultSlotMinutes = 30

// ValidationError rejects a schedule before it is stored.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Slot is one bookable interval.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Label is the HH:MM start used in booking forms.
func (s Slot) Label() string {
	return s.Start.Format("15:04")
}

// DefaultWindows are the hours assumed for a doctor who never saved a
// schedule: Monday to Saturday, 09:00 to 17:00.
func DefaultWindows(doctorID string) []models.DoctorSchedule {
	var out []models.DoctorSchedule
	for day := time.Monday; day <= time.Saturday; day++ {
		out = append(out, models.DoctorSchedule{DoctorID: doctorID, Weekday: day, StartMinute: 9 * 60, EndMinute: 17 * 60, SlotMinutes: defaultSlotMinutes})
	}
	return out
}

type Service struct {
	repo   Repository
	logger *logging.Logger
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Get returns the doctor's windows, or DefaultWindows when none are stored.
func (s *Service) Get(ctx context.Context, doctorID string) ([]models.DoctorSchedule, error) {
	windows, err := s.repo.ForDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return DefaultWindows(doctorID), nil
	}
	return windows, nil
}

// Save validates and stores the doctor's windows.
func (s *Service) Save(ctx context.Context, doctorID string, windows []models.DoctorSchedule) error {
	for i := range windows {
		windows[i].DoctorID = doctorID
		if windows[i].SlotMinutes == 0 {
			windows[i].SlotMinutes = defaultSlotMinutes
		}
	}
	if err := Validate(windows); err != nil {
		return err
	}
	if err := s.repo.Replace(ctx, doctorID, windows); err != nil {
		return err
	}
	s.logger.Info("doctor schedule saved", "doctor_id", doctorID, "windows", len(windows))
	return nil
}

// Slots returns the doctor's bookable slots on day.
func (s *Service) Slots(ctx context.Context, doctorID string, day time.Time, booked []models.Appointment, now time.Time) ([]Slot, error) {
	windows, err := s.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return Slots(windows, day, booked, now), nil
}

// Validate checks window bounds and rejects overlapping windows on the same weekday.
func Validate(windows []models.DoctorSchedule) error {
	sorted := append([]models.DoctorSchedule(nil), windows...)
	sortWindows(sorted)
	for i, w := range sorted {
		if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
			return &ValidationError{Message: fmt.Sprintf("invalid weekday %d", w.Weekday)}
		}
		if w.StartMinute < 0 || w.EndMinute > 24*60 || w.EndMinute <= w.StartMinute {
			return &ValidationError{Message: fmt.Sprintf("%s: end must be after start", w.Weekday)}
		}
		if w.SlotMinutes <= 0 || w.SlotMinutes > w.EndMinute-w.StartMinute {
			return &ValidationError{Message: fmt.Sprintf("%s: slot length does not fit the window", w.Weekday)}
		}
		if i > 0 && sorted[i-1].Weekday == w.Weekday && sorted[i-1].EndMinute > w.StartMinute {
			return &ValidationError{Message: fmt.Sprintf("%s: windows overlap", w.Weekday)}
		}
	}
	return nil
}

// Slots expands the windows matching day's weekday into slots, dropping
// slots that have started by now and slots overlapping any appointment that
// is not cancelled.
func Slots(windows []models.DoctorSchedule, day time.Time, booked []models.Appointment, now time.Time) []Slot {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	var out []Slot
	for _, w := range windows {
		if w.Weekday != day.Weekday() {
			continue
		}
		step := w.SlotMinutes
		if step <= 0 {
			step = defaultSlotMinutes
		}
		for m := w.StartMinute; m+step <= w.EndMinute; m += step {
			slot := Slot{
				Start: day.Add(time.Duration(m) * time.Minute),
				End:   day.Add(time.Duration(m+step) * time.Minute),
			}
			if !slot.Start.After(now) || overlapsBooking(slot, booked) {
				continue
			}
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func overlapsBooking(slot Slot, booked []models.Appointment) bool {
	for _, a := range booked {
		if a.Status == models.StatusCancelled {
			continue
		}
		if a.StartTime.Before(slot.End) && a.End().After(slot.Start) {
			return true
		}
	}
	return false
}

func sortWindows(windows []models.DoctorSchedule) {
	sort.SliceStable(windows, func(i, j int) bool {
		if windows[i].Weekday != windows[j].Weekday {
			return windows[i].Weekday < windows[j].Weekday
		}
		return windows[i].StartMinute < windows[j].StartMinute
	})
}
