// Package dbtest opens throwaway sqlite databases carrying the storefront
// schema so repositories can be exercised without Postgres.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// schema mirrors the goose migrations with sqlite types. Money is kept as
// text so decimals round-trip exactly.
var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		must_update_password BOOLEAN NOT NULL DEFAULT 0,
		legacy_id INTEGER UNIQUE,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE roles (id TEXT PRIMARY KEY, name TEXT NOT NULL UNIQUE)`,
	`CREATE TABLE permissions (id TEXT PRIMARY KEY, name TEXT NOT NULL UNIQUE)`,
	`CREATE TABLE role_permissions (role_id TEXT NOT NULL, permission_id TEXT NOT NULL, PRIMARY KEY (role_id, permission_id))`,
	`CREATE TABLE user_roles (user_id TEXT NOT NULL, role_id TEXT NOT NULL, PRIMARY KEY (user_id, role_id))`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sku TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		description_short TEXT NOT NULL DEFAULT '',
		product_type TEXT NOT NULL,
		subscription_only BOOLEAN NOT NULL DEFAULT 0,
		release_date DATETIME,
		brokered_at TEXT,
		brokerage_product_id TEXT,
		price TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		meta_title TEXT,
		meta_description TEXT,
		meta_keywords TEXT,
		thumbnail_id TEXT,
		main_image_id TEXT,
		legacy_id INTEGER UNIQUE,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE product_media (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		url TEXT NOT NULL,
		caption TEXT NOT NULL DEFAULT '',
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		UNIQUE (product_id, url)
	)`,
	`CREATE TABLE product_files (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		url TEXT NOT NULL,
		created_at DATETIME,
		UNIQUE (product_id, url)
	)`,
	`CREATE TABLE tags (id TEXT PRIMARY KEY, name TEXT NOT NULL UNIQUE)`,
	`CREATE TABLE product_tags (product_id TEXT NOT NULL, tag_id TEXT NOT NULL, PRIMARY KEY (product_id, tag_id))`,
	`CREATE TABLE related_products (product_id TEXT NOT NULL, related_product_id TEXT NOT NULL, PRIMARY KEY (product_id, related_product_id))`,
	`CREATE TABLE sub_products (product_id TEXT NOT NULL, sub_product_id TEXT NOT NULL, PRIMARY KEY (product_id, sub_product_id))`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		subtotal TEXT NOT NULL,
		discount TEXT NOT NULL,
		total TEXT NOT NULL,
		coupon_code TEXT,
		transaction_id TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_line_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		UNIQUE (order_id, product_id)
	)`,
	`CREATE TABLE discounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		coupon_code TEXT,
		permission TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE wishlists (user_id TEXT NOT NULL, product_id TEXT NOT NULL, created_at DATETIME, PRIMARY KEY (user_id, product_id))`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json BLOB NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME
	)`,
}

// Open returns a fresh in-memory database with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
