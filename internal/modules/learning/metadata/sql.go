package metadata

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	repolearning "github.com/yungbote/neurobridge-pathopt/internal/data/repos/learning"
	"github.com/yungbote/neurobridge-pathopt/internal/domain/learning"
	"github.com/yungbote/neurobridge-pathopt/internal/pkg/dbctx"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/logger"
)

const sqlListBatchSize = 500

// SQLProvider reads learning objects from the learning_object table. Point
// lookups go through the repo; List streams the table in batches.
type SQLProvider struct {
	db  *gorm.DB
	los repolearning.LearningObjectRepo
	log *logger.Logger
}

// NewSQLProvider builds a repo over db when los is nil.
func NewSQLProvider(db *gorm.DB, los repolearning.LearningObjectRepo, log *logger.Logger) *SQLProvider {
	if los == nil {
		los = repolearning.NewLearningObjectRepo(db, log)
	}
	return &SQLProvider{db: db, los: los, log: logger.OrNop(log).With("service", "SQLMetadataProvider")}
}

func (p *SQLProvider) Get(ctx context.Context, id string) (Record, error) {
	row, err := p.los.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return Record{}, fmt.Errorf("get learning object %q: %w", id, err)
	}
	if row == nil {
		return Record{}, notFound(id)
	}
	return recordFromRow(row)
}

func (p *SQLProvider) List(ctx context.Context, fn func(Record) error) error {
	var rows []learning.LearningObject
	res := p.db.WithContext(ctx).FindInBatches(&rows, sqlListBatchSize, func(_ *gorm.DB, _ int) error {
		for i := range rows {
			rec, err := recordFromRow(&rows[i])
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
	if res.Error != nil {
		return fmt.Errorf("list learning objects: %w", res.Error)
	}
	return nil
}

func recordFromRow(row *learning.LearningObject) (Record, error) {
	prereqs, err := row.PrerequisiteIDs()
	if err != nil {
		return Record{}, fmt.Errorf("learning object %q: decode prerequisites: %w", row.ID, err)
	}
	return normalizeRecord(Record{
		ID:            row.ID,
		EstimatedTime: row.EstimatedTime,
		Prerequisites: prereqs,
		Module:        row.ModuleTitle,
	}), nil
}

// RowsFromRecords converts records for LearningObjectRepo.Upsert.
func RowsFromRecords(records []Record) ([]*learning.LearningObject, error) {
	rows := make([]*learning.LearningObject, 0, len(records))
	for _, r := range records {
		r = normalizeRecord(r)
		if err := r.Validate(); err != nil {
			return nil, err
		}
		row := &learning.LearningObject{ID: r.ID, ModuleTitle: r.Module, EstimatedTime: r.EstimatedTime}
		if err := row.SetPrerequisiteIDs(r.Prerequisites); err != nil {
			return nil, fmt.Errorf("learning object %q: encode prerequisites: %w", r.ID, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
