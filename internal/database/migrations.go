package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type index struct {
	table   string
	name    string
	columns string
}

// Composite indexes for the hot board read paths. Single-column indexes are
// declared on the models.
var boardIndexes = []index{
	{"tasks", "idx_tasks_board_id_created_at", "board_id, created_at"},
	{"tasks", "idx_tasks_column_id_status", "column_id, status"},
	{"columns", "idx_columns_board_id_sort_order", "board_id, sort_order"},
	{"workspace_members", "idx_workspace_members_user_id", "user_id"},
	{"boards", "idx_boards_workspace_id_created_at", "workspace_id, created_at"},
}

// AddIndexes creates the composite indexes that AutoMigrate does not.
// Only postgres is handled; other dialects rely on the model indexes.
func AddIndexes(db *gorm.DB, log logrus.FieldLogger) error {
	if db.Dialector.Name() != "postgres" {
		log.WithField("driver", db.Dialector.Name()).Debug("Skipping composite indexes")
		return nil
	}

	for _, idx := range boardIndexes {
		var count int64
		err := db.Raw(`
			SELECT COUNT(*)
			FROM pg_indexes
			WHERE tablename = ? AND indexname = ?
		`, idx.table, idx.name).Scan(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", idx.name, err)
		}

		if count > 0 {
			log.WithField("index", idx.name).Debug("Index already exists, skipping")
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.WithFields(logrus.Fields{"index": idx.name, "table": idx.table}).Info("Created index")
	}

	return nil
}
