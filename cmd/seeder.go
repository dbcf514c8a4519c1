package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/softeno/permission-template/internal"
	"github.com/softeno/permission-template/internal/permission"
	permissionPostgres "github.com/softeno/permission-template/internal/permission/postgres"
	"github.com/softeno/permission-template/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const (
	seedActor   = "seeder"
	seedTimeout = 30 * time.Second
)

type seedPermission struct {
	UUID        uuid.UUID
	Name        string
	Description string
}

// Fixed uuids make reseeding update rows in place.
var seedPermissions = []seedPermission{
	{uuid.MustParse("6f1c1a8e-4d3b-4c55-9a0e-0c1e2f3a4b01"), "permission:read", "Can list and view permissions"},
	{uuid.MustParse("6f1c1a8e-4d3b-4c55-9a0e-0c1e2f3a4b02"), "permission:write", "Can create and update permissions"},
	{uuid.MustParse("6f1c1a8e-4d3b-4c55-9a0e-0c1e2f3a4b03"), "permission:delete", "Can delete permissions"},
	{uuid.MustParse("6f1c1a8e-4d3b-4c55-9a0e-0c1e2f3a4b04"), "permission:import", "Can reconcile permission batches"},
	{uuid.MustParse("6f1c1a8e-4d3b-4c55-9a0e-0c1e2f3a4b05"), "external:read", "Can read upstream sample resources"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample permissions for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		ctx, cancel := internal.WithTimeout(context.Background(), seedTimeout)
		defer cancel()
		if clearData {
			if err := gormDB.WithContext(ctx).Exec("DELETE FROM permissions").Error; err != nil {
				log.Fatalf("failed to clear permissions: %v", err)
			}
			fmt.Println("Cleared existing permissions")
		}

		ids, err := seed(ctx, gormDB, seedPermissions)
		if err != nil {
			log.Fatalf("failed to seed permissions: %v", err)
		}
		for _, p := range seedPermissions {
			fmt.Printf("Seeded permission %s (id=%d)\n", p.Name, ids[p.UUID.String()])
		}
	},
}

// seed reconciles the sample set: unknown uuids are inserted, known ones get
// their name and description refreshed.
func seed(ctx context.Context, db *gorm.DB, samples []seedPermission) (map[string]int64, error) {
	keys := make([]uuid.UUID, 0, len(samples))
	for _, s := range samples {
		keys = append(keys, s.UUID)
	}

	var existing []struct {
		ID   int64
		UUID string
	}
	if err := db.WithContext(ctx).Table("permissions").Select("id, uuid").Where("uuid IN ?", keys).Scan(&existing).Error; err != nil {
		return nil, fmt.Errorf("lookup existing permissions: %w", err)
	}
	known := make(map[string]int64, len(existing))
	for _, row := range existing {
		known[row.UUID] = row.ID
	}

	items := make([]permission.BatchItemDTO, 0, len(samples))
	for _, s := range samples {
		name, description := s.Name, s.Description
		item := permission.BatchItemDTO{UUID: s.UUID, Name: &name, Description: &description}
		if id, ok := known[s.UUID.String()]; ok {
			item.ID = &id
		}
		items = append(items, item)
	}

	service := permission.NewService(permissionPostgres.NewPermissionRepository(db), nil, nil, logger.LoggerWrapper())
	ids, err := service.ImportPermissions(ctx, items, seedActor)
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(ids))
	for key, id := range ids {
		out[key.String()] = id
	}
	return out, nil
}
