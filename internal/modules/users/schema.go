package users

import "database/sql"

const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    hashed_password TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
