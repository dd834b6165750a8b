package database

import (
	"fmt"

	"gorm.io/gorm"

	"greenroute-service/service/database/views"
)

func AutoMigrateView(db *gorm.DB) error {
	allViews := make(map[string]map[string]string)
	allViews["datasets"] = views.DatasetViews
	allViews["pipeline_runs"] = views.RunViews
	for _, viewSQLs := range allViews {
		for name, viewSQL := range viewSQLs {
			if err := db.Exec(viewSQL).Error; err != nil {
				return fmt.Errorf("创建视图 %s 失败: %v", name, err)
			}
			fmt.Printf("成功创建视图: %s\n", name)
		}
	}

	return nil
}
