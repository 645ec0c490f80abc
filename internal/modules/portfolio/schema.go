package portfolio

import "database/sql"

// total_value and roi are valuation caches, always recomputable from
// the ledger; valued_at records when they were last refreshed.
const Schema = `
CREATE TABLE IF NOT EXISTS portfolios (
    id TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL UNIQUE REFERENCES users(id),
    total_value TEXT NOT NULL DEFAULT '0',
    roi TEXT NOT NULL DEFAULT '0',
    valued_at TEXT,
    created_at TEXT NOT NULL
);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
