package database

import (
	"context"
	"database/sql"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		role VARCHAR(16) NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS parents (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		phone VARCHAR(32) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS classes (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		min_age INT NULL,
		max_age INT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_classes_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS children (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		birth_date CHAR(10) NULL,
		parent_id BIGINT UNSIGNED NULL,
		class_id BIGINT UNSIGNED NULL,
		allergies VARCHAR(500) NOT NULL DEFAULT '',
		notes VARCHAR(1000) NOT NULL DEFAULT '',
		archived TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_children_archived (archived),
		CONSTRAINT fk_children_parent FOREIGN KEY (parent_id) REFERENCES parents(id) ON DELETE SET NULL,
		CONSTRAINT fk_children_class FOREIGN KEY (class_id) REFERENCES classes(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		child_id BIGINT UNSIGNED NULL,
		class_name VARCHAR(100) NOT NULL,
		tag_number INT NOT NULL,
		security_code VARCHAR(12) NOT NULL,
		service_date CHAR(10) NOT NULL,
		checked_in_at DATETIME NOT NULL,
		checked_out_at DATETIME NULL,
		checked_in_by BIGINT UNSIGNED NULL,
		checked_out_by BIGINT UNSIGNED NULL,
		KEY idx_attendance_date (service_date),
		KEY idx_attendance_child_date (child_id, service_date),
		CONSTRAINT fk_attendance_child FOREIGN KEY (child_id) REFERENCES children(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tag_usages (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		tag_number INT NOT NULL,
		usage_date CHAR(10) NOT NULL,
		attendance_id BIGINT UNSIGNED NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_tag_usages_date_tag (usage_date, tag_number),
		CONSTRAINT fk_tag_usages_attendance FOREIGN KEY (attendance_id) REFERENCES attendance(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tag_override_logs (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		tag_number INT NOT NULL,
		usage_date CHAR(10) NOT NULL,
		previous_usage_id BIGINT UNSIGNED NOT NULL,
		new_usage_id BIGINT UNSIGNED NOT NULL,
		overridden_by BIGINT UNSIGNED NULL,
		created_at DATETIME NOT NULL,
		KEY idx_tag_override_logs_date (usage_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS system_flags (
		child_id BIGINT UNSIGNED PRIMARY KEY,
		irregular TINYINT(1) NOT NULL,
		window_start CHAR(10) NOT NULL,
		window_end CHAR(10) NOT NULL,
		computed_at DATETIME NOT NULL,
		CONSTRAINT fk_system_flags_child FOREIGN KEY (child_id) REFERENCES children(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS settings (
		setting_key VARCHAR(64) PRIMARY KEY,
		value VARCHAR(1000) NOT NULL,
		updated_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS parents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		min_age INTEGER NULL,
		max_age INTEGER NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS children (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		birth_date TEXT NULL,
		parent_id INTEGER NULL REFERENCES parents(id) ON DELETE SET NULL,
		class_id INTEGER NULL REFERENCES classes(id) ON DELETE SET NULL,
		allergies TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		archived INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_children_archived ON children(archived)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		child_id INTEGER NULL REFERENCES children(id) ON DELETE SET NULL,
		class_name TEXT NOT NULL,
		tag_number INTEGER NOT NULL,
		security_code TEXT NOT NULL,
		service_date TEXT NOT NULL,
		checked_in_at DATETIME NOT NULL,
		checked_out_at DATETIME NULL,
		checked_in_by INTEGER NULL,
		checked_out_by INTEGER NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(service_date)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_child_date ON attendance(child_id, service_date)`,
	`CREATE TABLE IF NOT EXISTS tag_usages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tag_number INTEGER NOT NULL,
		usage_date TEXT NOT NULL,
		attendance_id INTEGER NOT NULL REFERENCES attendance(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		UNIQUE (usage_date, tag_number)
	)`,
	`CREATE TABLE IF NOT EXISTS tag_override_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tag_number INTEGER NOT NULL,
		usage_date TEXT NOT NULL,
		previous_usage_id INTEGER NOT NULL,
		new_usage_id INTEGER NOT NULL,
		overridden_by INTEGER NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tag_override_logs_date ON tag_override_logs(usage_date)`,
	`CREATE TABLE IF NOT EXISTS system_flags (
		child_id INTEGER PRIMARY KEY REFERENCES children(id) ON DELETE CASCADE,
		irregular INTEGER NOT NULL,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		computed_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		setting_key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}

// Migrate creates any missing tables.  Statements are idempotent so it is
// safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts := mysqlSchema
	if d == SQLite {
		stmts = sqliteSchema
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
