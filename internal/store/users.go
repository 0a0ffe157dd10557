package store

import (
	"context"
	"fmt"

	"parking-availability-backend/internal/model"
)

// GetOrCreateUser looks a user up by phone number, creating the record on
// first login. A non-empty name updates a previously blank one.
func (s *gormStore) GetOrCreateUser(ctx context.Context, phone, name string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where(model.User{Phone: phone}).
		Attrs(model.User{Name: name}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user %q: %w", phone, err)
	}

	if name != "" && user.Name == "" {
		user.Name = name
		if err := s.db.WithContext(ctx).Model(&user).Update("name", name).Error; err != nil {
			return nil, fmt.Errorf("failed to update name for user %q: %w", phone, err)
		}
	}
	return &user, nil
}

// GetOrCreateSensor looks a sensor up by its external code, binding it to the
// slot on first sight. Simulated sensors use codes like "SIM-<slot-code>".
func (s *gormStore) GetOrCreateSensor(ctx context.Context, code string, slotID int64) (*model.Sensor, error) {
	var sensor model.Sensor
	err := s.db.WithContext(ctx).
		Where(model.Sensor{Code: code}).
		Attrs(model.Sensor{SlotID: slotID}).
		FirstOrCreate(&sensor).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create sensor %q: %w", code, err)
	}
	return &sensor, nil
}
