package store

import "context"

// schema is the fixed table layout. Every statement is create-if-absent, so
// Setup can run against an existing database.
var schema = []struct {
	table string
	ddl   string
}{
	{"User", `CREATE TABLE IF NOT EXISTS User (
		user_id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`},
	{"Room", `CREATE TABLE IF NOT EXISTS Room (
		room_id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_name TEXT NOT NULL UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`},
	{"Message", `CREATE TABLE IF NOT EXISTS Message (
		message_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		room_id INTEGER,
		message TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES User(user_id),
		FOREIGN KEY(room_id) REFERENCES Room(room_id)
	)`},
	{"RoomUser", `CREATE TABLE IF NOT EXISTS RoomUser (
		user_id INTEGER,
		room_id INTEGER,
		last_read_at DATETIME,
		PRIMARY KEY(user_id, room_id),
		FOREIGN KEY(user_id) REFERENCES User(user_id),
		FOREIGN KEY(room_id) REFERENCES Room(room_id)
	)`},
}

// Setup creates the four tables if they are missing. The statements go
// through the lane like any other operation; Setup returns the first failure.
func (e *Engine) Setup(ctx context.Context) error {
	for _, s := range schema {
		res := e.Execute(ctx, "setup_"+s.table, s.ddl).Wait(ctx)
		if res.Err != nil {
			return res.Err
		}
		e.log.Debug().Str("table", s.table).Msg("table ready")
	}
	return nil
}

// Ping runs a trivial query through the lane. It reports whether the lane is
// accepting work and the database answers.
func (e *Engine) Ping(ctx context.Context) error {
	return e.Query(ctx, "ping", "SELECT 1").Wait(ctx).Err
}
