package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-pathopt/internal/data/repos/learning"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/logger"
)

type LearningObjectRepo = learning.LearningObjectRepo

func NewLearningObjectRepo(db *gorm.DB, baseLog *logger.Logger) LearningObjectRepo {
	return learning.NewLearningObjectRepo(db, baseLog)
}

// Repos groups every repository bound to one database handle.
type Repos struct {
	LearningObject LearningObjectRepo
}

func New(db *gorm.DB, baseLog *logger.Logger) Repos {
	return Repos{
		LearningObject: NewLearningObjectRepo(db, baseLog),
	}
}
