package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/corrigefolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateIndexObservations()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		client_code TEXT NOT NULL DEFAULT '',
		client_name TEXT NOT NULL DEFAULT '',
		sale_number TEXT NOT NULL DEFAULT '',
		sale_date TEXT,
		sale_amount REAL NOT NULL DEFAULT 0,
		warnings TEXT,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS installments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		code TEXT NOT NULL,
		due_date TEXT NOT NULL,
		original_amount REAL NOT NULL,
		paid_date TEXT,
		paid_amount REAL NOT NULL DEFAULT 0,
		FOREIGN KEY(document_id) REFERENCES documents(id),
		UNIQUE(document_id, code, due_date)
	);

	CREATE TABLE IF NOT EXISTS index_observations (
		index_name TEXT NOT NULL,
		period TEXT NOT NULL,
		value REAL NOT NULL,
		fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(index_name, period)
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateIndexObservations backfills columns added after the first release.
// Early cache files carried only (index_name, period, value).
func migrateIndexObservations() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='index_observations'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'index_observations' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'index_observations' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'index_observations' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'index_observations' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(index_observations)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'index_observations'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'index_observations': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'index_observations'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'index_observations': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'index_observations'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'index_observations': %v", err)
		}
		return
	}

	if _, ok := columnExists["fetched_at"]; !ok {
		_, err := DB.Exec("ALTER TABLE index_observations ADD COLUMN fetched_at TIMESTAMP")
		if err != nil {
			logger.L.Error("Error adding 'fetched_at' column to 'index_observations' table", "error", err)
		} else {
			logger.L.Info("Added 'fetched_at' column to 'index_observations' table")
		}
	}
}
