package repository

import (
	"errors"

	"gorm.io/gorm"

	"selfbooking/cmd/internal/domain/entity"
)

type DefaultBlackoutRepository struct {
	db *gorm.DB
}

func NewBlackoutRepository(db *gorm.DB) *DefaultBlackoutRepository {
	return &DefaultBlackoutRepository{db: db}
}

func (b *DefaultBlackoutRepository) FindByID(id int) (*entity.BlackoutPeriod, error) {
	var period entity.BlackoutPeriod
	err := b.db.First(&period, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &period, err
}

func (b *DefaultBlackoutRepository) FindAll() ([]*entity.BlackoutPeriod, error) {
	var periods []*entity.BlackoutPeriod
	err := b.db.Order("start_date asc").Find(&periods).Error
	return periods, err
}

func (b *DefaultBlackoutRepository) Create(period *entity.BlackoutPeriod) error {
	return b.db.Create(period).Error
}

func (b *DefaultBlackoutRepository) Delete(period *entity.BlackoutPeriod) error {
	return b.db.Delete(period).Error
}
