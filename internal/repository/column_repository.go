package repository

import (
	"context"
	"errors"

	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"gorm.io/gorm"
)

// GormColumnRepository is a GORM implementation of ColumnRepository
type GormColumnRepository struct {
	db *gorm.DB
}

// NewColumnRepository creates a new column repository
func NewColumnRepository(db *gorm.DB) ColumnRepository {
	return &GormColumnRepository{db: db}
}

// Create creates a new column
func (r *GormColumnRepository) Create(ctx context.Context, column *models.Column) error {
	return r.db.WithContext(ctx).Create(column).Error
}

// FindByID finds a column by ID
func (r *GormColumnRepository) FindByID(ctx context.Context, id string) (*models.Column, error) {
	var column models.Column
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&column).Error; err != nil {
		return nil, err
	}
	return &column, nil
}

// ListByBoard lists the columns of a board
func (r *GormColumnRepository) ListByBoard(ctx context.Context, boardID string) ([]models.Column, error) {
	var columns []models.Column
	if err := r.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("sort_order ASC").
		Order("created_at ASC").
		Find(&columns).Error; err != nil {
		return nil, err
	}
	return columns, nil
}

// NextOrder is one past the highest order on the board, or 0 for an empty board.
func (r *GormColumnRepository) NextOrder(ctx context.Context, boardID string) (int, error) {
	var last models.Column
	err := r.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("sort_order DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last.Order + 1, nil
}

// Update saves a column
func (r *GormColumnRepository) Update(ctx context.Context, column *models.Column) error {
	return r.db.WithContext(ctx).Save(column).Error
}

// Delete deletes a column and its tasks in a transaction
func (r *GormColumnRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("column_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&models.Column{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
