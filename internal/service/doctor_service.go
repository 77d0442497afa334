package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/klinikgo/clinic-rota-api/internal/models"
	appErrors "github.com/klinikgo/clinic-rota-api/pkg/errors"
)

type doctorReader interface {
	List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error)
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
}

// DoctorService serves the read-only doctor directory.
type DoctorService struct {
	doctors doctorReader
}

func NewDoctorService(doctors doctorReader) *DoctorService {
	return &DoctorService{doctors: doctors}
}

func (s *DoctorService) List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.doctors.List(ctx, filter)
}

func (s *DoctorService) Get(ctx context.Context, id string) (*models.Doctor, error) {
	doctor, err := s.doctors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load doctor")
	}
	return doctor, nil
}
