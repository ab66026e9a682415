package learning

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// LearningObject is one curriculum unit ("cell") with its study time and
// direct prerequisites.
type LearningObject struct {
	ID          string `gorm:"column:id;primaryKey" json:"id"`
	ModuleTitle string `gorm:"column:module_title;index" json:"module_title,omitempty"`
	// Minutes.
	EstimatedTime int            `gorm:"column:estimated_time;not null" json:"estimated_time"`
	Prerequisites datatypes.JSON `gorm:"column:prerequisites" json:"prerequisites"` // []string
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (LearningObject) TableName() string { return "learning_object" }

// PrerequisiteIDs decodes the JSON prerequisite column. An empty column is
// treated as no prerequisites.
func (lo *LearningObject) PrerequisiteIDs() ([]string, error) {
	if lo == nil || len(lo.Prerequisites) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(lo.Prerequisites, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (lo *LearningObject) SetPrerequisiteIDs(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	lo.Prerequisites = datatypes.JSON(b)
	return nil
}
