package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tree-census/internal/model"
)

const insertBatchSize = 500

// RecordRepository stores the record store of each session so it can be
// recovered when the in-memory session is lost.
type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Replace swaps the stored dataset of a session in one transaction.
func (r *RecordRepository) Replace(ctx context.Context, sessionID string, dataset *model.Dataset) error {
	header, rows, err := toRows(sessionID, dataset)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.RecordRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.DatasetRow{}).Error; err != nil {
			return err
		}
		if err := tx.Create(header).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
}

// Load returns nil without error when the session has nothing stored.
func (r *RecordRepository) Load(ctx context.Context, sessionID string) (*model.Dataset, error) {
	var header model.DatasetRow
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&header).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var rows []model.RecordRow
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	return fromRows(header, rows)
}

func (r *RecordRepository) Delete(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.RecordRow{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", sessionID).Delete(&model.DatasetRow{}).Error
	})
}

// PurgeBefore removes sessions last written before cutoff and returns how
// many were removed.
func (r *RecordRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&model.DatasetRow{}).Select("session_id").Where("updated_at < ?", cutoff)
		if err := tx.Where("session_id IN (?)", stale).Delete(&model.RecordRow{}).Error; err != nil {
			return err
		}
		res := tx.Where("updated_at < ?", cutoff).Delete(&model.DatasetRow{})
		purged = res.RowsAffected
		return res.Error
	})
	return purged, err
}

func toRows(sessionID string, dataset *model.Dataset) (*model.DatasetRow, []model.RecordRow, error) {
	columns, err := json.Marshal(dataset.Columns)
	if err != nil {
		return nil, nil, fmt.Errorf("encode columns: %w", err)
	}

	loadedAt := dataset.LoadedAt
	if loadedAt.IsZero() {
		loadedAt = time.Now().UTC()
	}
	header := &model.DatasetRow{
		SessionID: sessionID,
		Source:    dataset.Source,
		Columns:   string(columns),
		LoadedAt:  loadedAt,
		UpdatedAt: time.Now().UTC(),
	}

	rows := make([]model.RecordRow, 0, len(dataset.Records))
	for i, rec := range dataset.Records {
		attrs := rec.Attributes
		if attrs == nil {
			attrs = map[string]model.Value{}
		}
		encoded, err := json.Marshal(attrs)
		if err != nil {
			return nil, nil, fmt.Errorf("encode record %d: %w", rec.ID, err)
		}
		rows = append(rows, model.RecordRow{
			SessionID:  sessionID,
			Position:   i,
			RecordID:   rec.ID,
			Species:    rec.Species,
			Condition:  rec.Condition,
			Lat:        rec.Lat,
			Lng:        rec.Lng,
			Attributes: string(encoded),
		})
	}
	return header, rows, nil
}

func fromRows(header model.DatasetRow, rows []model.RecordRow) (*model.Dataset, error) {
	dataset := &model.Dataset{
		Source:   header.Source,
		LoadedAt: header.LoadedAt,
		Records:  make([]model.Record, 0, len(rows)),
	}
	if header.Columns != "" {
		if err := json.Unmarshal([]byte(header.Columns), &dataset.Columns); err != nil {
			return nil, fmt.Errorf("decode columns: %w", err)
		}
	}

	for _, row := range rows {
		rec := model.Record{
			ID:        row.RecordID,
			Species:   row.Species,
			Condition: row.Condition,
			Lat:       row.Lat,
			Lng:       row.Lng,
		}
		if row.Attributes != "" && row.Attributes != "{}" {
			if err := json.Unmarshal([]byte(row.Attributes), &rec.Attributes); err != nil {
				return nil, fmt.Errorf("decode record %d: %w", row.RecordID, err)
			}
		}
		dataset.Records = append(dataset.Records, rec)
	}
	return dataset, nil
}
