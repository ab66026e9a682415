package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-pathopt/internal/domain/learning"
)

func SeedLearningObject(tb testing.TB, ctx context.Context, tx *gorm.DB, id string, minutes int, prereqs ...string) *types.LearningObject {
	tb.Helper()
	lo := &types.LearningObject{ID: id, ModuleTitle: "fixtures", EstimatedTime: minutes}
	if err := lo.SetPrerequisiteIDs(prereqs); err != nil {
		tb.Fatalf("encode prerequisites: %v", err)
	}
	if err := tx.WithContext(ctx).Create(lo).Error; err != nil {
		tb.Fatalf("seed learning object: %v", err)
	}
	return lo
}
