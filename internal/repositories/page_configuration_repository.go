package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dataportal/internal/models"
)

type PageConfigurationRepository struct {
	db *gorm.DB
}

func NewPageConfigurationRepository(db *gorm.DB) *PageConfigurationRepository {
	return &PageConfigurationRepository{db: db}
}

func (r *PageConfigurationRepository) List(ctx context.Context) ([]models.PageConfiguration, error) {
	var confs []models.PageConfiguration
	err := r.db.WithContext(ctx).Order("page_id").Find(&confs).Error
	return confs, err
}

// FindByPageID returns nil, nil when the page has no stored configuration.
func (r *PageConfigurationRepository) FindByPageID(ctx context.Context, pageID string) (*models.PageConfiguration, error) {
	var conf models.PageConfiguration
	err := r.db.WithContext(ctx).Where("page_id = ?", pageID).First(&conf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conf, nil
}

// Save inserts the configuration or replaces the one stored for the same page.
func (r *PageConfigurationRepository) Save(ctx context.Context, conf *models.PageConfiguration) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "page_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"page_type", "body", "updated_by", "updated_at"}),
	}).Create(conf).Error
}
