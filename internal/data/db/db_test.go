package db

import (
	"context"
	"strings"
	"testing"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

func TestDialectorFor(t *testing.T) {
	d, err := dialectorFor(Config{Driver: DriverPostgres, Host: "db", User: "u", Password: "p@ss", Name: "books"})
	if err != nil {
		t.Fatalf("dialectorFor postgres: %v", err)
	}
	pg, ok := d.(*postgres.Dialector)
	if !ok {
		t.Fatalf("dialectorFor postgres: got %T", d)
	}
	if !strings.Contains(pg.Config.DSN, "p%40ss@db:5432/books") {
		t.Fatalf("dialectorFor postgres: dsn=%s", pg.Config.DSN)
	}

	d, err = dialectorFor(Config{Driver: DriverMySQL, Host: "10.0.0.2", User: "u", Password: "p", Name: "bookmatch", Tunneled: true})
	if err != nil {
		t.Fatalf("dialectorFor mysql: %v", err)
	}
	my, ok := d.(*mysql.Dialector)
	if !ok {
		t.Fatalf("dialectorFor mysql: got %T", d)
	}
	if !strings.Contains(my.Config.DSN, "@"+MySQLTunnelNetwork()+"(10.0.0.2:3306)/bookmatch") {
		t.Fatalf("dialectorFor mysql: dsn=%s", my.Config.DSN)
	}

	if _, err := dialectorFor(Config{Driver: "oracle"}); err == nil {
		t.Fatalf("dialectorFor: expected error for unknown driver")
	}
}

func TestOpenMigrateSeedSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, logger.Nop(), Config{Driver: DriverSQLite, DSN: "file:seedtest?mode=memory&cache=shared"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := AutoMigrateAll(db); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	tax, err := catalog.DefaultTaxonomy()
	if err != nil {
		t.Fatalf("DefaultTaxonomy: %v", err)
	}
	n, err := SeedTaxonomy(ctx, db, logger.Nop(), tax)
	if err != nil {
		t.Fatalf("SeedTaxonomy: %v", err)
	}
	if _, err := SeedTaxonomy(ctx, db, logger.Nop(), tax); err != nil {
		t.Fatalf("SeedTaxonomy again: %v", err)
	}
	var count int64
	if err := db.Model(&catalog.SubCategory{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if int(count) != n {
		t.Fatalf("SeedTaxonomy: want=%d rows got=%d", n, count)
	}
}
