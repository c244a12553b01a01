// Package schedule stores doctors' weekly availability and turns it into
// bookable slots.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"healsync-portal/internal/models"
	"healsync-portal/internal/store"
)

// Repository persists a doctor's weekly windows.
type Repository interface {
	ForDoctor(ctx context.Context, doctorID string) ([]models.DoctorSchedule, error)
	Replace(ctx context.Context, doctorID string, windows []models.DoctorSchedule) error
}

// GormRepository keeps schedules in the doctor_schedules table.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) ForDoctor(ctx context.Context, doctorID string) ([]models.DoctorSchedule, error) {
	var windows []models.DoctorSchedule
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("weekday, start_minute").
		Find(&windows).Error
	if err != nil {
		return nil, fmt.Errorf("schedule: load %s: %w", doctorID, err)
	}
	return windows, nil
}

// Replace swaps the doctor's windows in one transaction.
func (r *GormRepository) Replace(ctx context.Context, doctorID string, windows []models.DoctorSchedule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("doctor_id = ?", doctorID).Delete(&models.DoctorSchedule{}).Error; err != nil {
			return fmt.Errorf("schedule: clear %s: %w", doctorID, err)
		}
		if len(windows) == 0 {
			return nil
		}
		if err := tx.Create(&windows).Error; err != nil {
			return fmt.Errorf("schedule: save %s: %w", doctorID, err)
		}
		return nil
	})
}

// KVRepository keeps each doctor's windows as one JSON record under
// doctor_schedule_<id>.
type KVRepository struct {
	store store.Store
}

func NewKVRepository(st store.Store) *KVRepository {
	return &KVRepository{store: st}
}

func kvKey(doctorID string) string {
	return "doctor_schedule_" + doctorID
}

func (r *KVRepository) ForDoctor(ctx context.Context, doctorID string) ([]models.DoctorSchedule, error) {
	var windows []models.DoctorSchedule
	if err := store.GetJSON(ctx, r.store, kvKey(doctorID), &windows); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("schedule: load %s: %w", doctorID, err)
	}
	sortWindows(windows)
	return windows, nil
}

func (r *KVRepository) Replace(ctx context.Context, doctorID string, windows []models.DoctorSchedule) error {
	for i := range windows {
		if windows[i].ID == "" {
			windows[i].ID = uuid.NewString()
		}
	}
	if err := store.SetJSON(ctx, r.store, kvKey(doctorID), windows, 0); err != nil {
		return fmt.Errorf("schedule: save %s: %w", doctorID, err)
	}
	return nil
}
