package learning

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/neurobridge-pathopt/internal/domain/learning"
	"github.com/yungbote/neurobridge-pathopt/internal/pkg/dbctx"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/logger"
)

type LearningObjectRepo interface {
	Upsert(dbc dbctx.Context, rows []*types.LearningObject) error

	GetByIDs(dbc dbctx.Context, ids []string) ([]*types.LearningObject, error)
	// GetByID returns nil without error when id is unknown.
	GetByID(dbc dbctx.Context, id string) (*types.LearningObject, error)
	Count(dbc dbctx.Context) (int64, error)
}

type learningObjectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearningObjectRepo(db *gorm.DB, baseLog *logger.Logger) LearningObjectRepo {
	return &learningObjectRepo{db: db, log: logger.OrNop(baseLog).With("repo", "LearningObjectRepo")}
}

func (r *learningObjectRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

// Upsert inserts rows or overwrites time, module and prerequisites of
// existing ids.
func (r *learningObjectRepo) Upsert(dbc dbctx.Context, rows []*types.LearningObject) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
	}
	return r.tx(dbc).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"module_title", "estimated_time", "prerequisites", "updated_at"}),
	}).CreateInBatches(&rows, 500).Error
}

func (r *learningObjectRepo) GetByIDs(dbc dbctx.Context, ids []string) ([]*types.LearningObject, error) {
	var out []*types.LearningObject
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).Where("id IN ?", ids).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *learningObjectRepo) GetByID(dbc dbctx.Context, id string) (*types.LearningObject, error) {
	if id == "" {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []string{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *learningObjectRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := r.tx(dbc).Model(&types.LearningObject{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
