package store

import (
	"context"
	"strconv"

	"github.com/tbourn/go-chat-tcp/internal/domain"
)

// Statements are fixed; values are always bound to placeholders.
const (
	stmtAddUser    = `INSERT INTO User (username, password, created_at) VALUES (?, ?, ?)`
	stmtUpdateUser = `UPDATE User SET password = ? WHERE user_id = ?`
	stmtGetUser    = `SELECT user_id, username, created_at FROM User WHERE user_id = ?`
	stmtDeleteUser = `DELETE FROM User WHERE user_id = ?`

	stmtCreateRoom    = `INSERT INTO Room (room_name, created_at) VALUES (?, ?)`
	stmtDeleteRoom    = `DELETE FROM Room WHERE room_id = ?`
	stmtGetRoomByName = `SELECT room_id FROM Room WHERE room_name = ?`

	stmtSendMessage       = `INSERT INTO Message (user_id, room_id, message, timestamp) VALUES (?, ?, ?, ?)`
	stmtGetMessagesByRoom = `SELECT Message.message_id, User.username, Message.message, Message.timestamp
		FROM Message
		INNER JOIN User ON User.user_id = Message.user_id
		WHERE Message.room_id = ?
		ORDER BY Message.timestamp ASC, Message.message_id ASC`

	stmtGetRoomsByUser = `SELECT Room.room_id, Room.room_name, Room.created_at
		FROM Room
		INNER JOIN RoomUser ON RoomUser.room_id = Room.room_id
		WHERE RoomUser.user_id = ?
		ORDER BY Room.room_id ASC`
	stmtGetRoomMembers = `SELECT User.user_id, User.username
		FROM User
		INNER JOIN RoomUser ON RoomUser.user_id = User.user_id
		WHERE RoomUser.room_id = ?
		ORDER BY User.user_id ASC`

	stmtAddUserToRoom      = `INSERT OR IGNORE INTO RoomUser (user_id, room_id, last_read_at) VALUES (?, ?, ?)`
	stmtRemoveUserFromRoom = `DELETE FROM RoomUser WHERE user_id = ? AND room_id = ?`
	stmtMarkAsRead         = `UPDATE RoomUser SET last_read_at = ? WHERE user_id = ? AND room_id = ?`

	// A missing membership joins nothing and a NULL last_read_at never
	// compares greater, so both count 0.
	stmtUnreadCount = `SELECT COUNT(*)
		FROM Message
		INNER JOIN RoomUser ON RoomUser.room_id = Message.room_id AND RoomUser.user_id = ?
		WHERE Message.room_id = ?
		  AND Message.timestamp > RoomUser.last_read_at`
)

// AddUser inserts a user. A duplicate username is a constraint error.
func (e *Engine) AddUser(ctx context.Context, username, password string) error {
	return e.exec(ctx, "add_user", stmtAddUser, username, password, Now)
}

// UpdateUser replaces a user's password. Updating a missing user is not an
// error.
func (e *Engine) UpdateUser(ctx context.Context, userID int64, password string) error {
	return e.exec(ctx, "update_user", stmtUpdateUser, password, userID)
}

// GetUser returns user_id, username and created_at. It returns ErrNotFound
// when no user has that id.
func (e *Engine) GetUser(ctx context.Context, userID int64) (domain.Row, error) {
	rows, err := e.rows(ctx, "get_user", stmtGetUser, userID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &Error{Op: "get_user", Err: ErrNotFound}
	}
	return rows[0], nil
}

// DeleteUser removes a user. Messages and memberships are left in place.
func (e *Engine) DeleteUser(ctx context.Context, userID int64) error {
	return e.exec(ctx, "delete_user", stmtDeleteUser, userID)
}

// CreateRoom inserts a room. A duplicate name is a constraint error.
func (e *Engine) CreateRoom(ctx context.Context, name string) error {
	return e.exec(ctx, "create_room", stmtCreateRoom, name, Now)
}

// DeleteRoom removes a room. Messages and memberships are left in place.
func (e *Engine) DeleteRoom(ctx context.Context, roomID int64) error {
	return e.exec(ctx, "delete_room", stmtDeleteRoom, roomID)
}

// GetRoomByName returns the id of the room with the given name.
func (e *Engine) GetRoomByName(ctx context.Context, name string) (int64, error) {
	rows, err := e.rows(ctx, "get_room_by_name", stmtGetRoomByName, name)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, &Error{Op: "get_room_by_name", Err: ErrNotFound}
	}
	return e.parseInt("get_room_by_name", rows[0][0])
}

// SendMessage stores a message stamped with the lane's execution time.
func (e *Engine) SendMessage(ctx context.Context, userID, roomID int64, body string) error {
	return e.exec(ctx, "send_message", stmtSendMessage, userID, roomID, body, Now)
}

// GetMessagesByRoom returns message_id, username, message and timestamp for
// every message in the room, oldest first.
func (e *Engine) GetMessagesByRoom(ctx context.Context, roomID int64) (domain.Rows, error) {
	return e.rows(ctx, "get_messages_by_room", stmtGetMessagesByRoom, roomID)
}

// GetRoomsByUser returns room_id, room_name and created_at for every room the
// user belongs to.
func (e *Engine) GetRoomsByUser(ctx context.Context, userID int64) (domain.Rows, error) {
	return e.rows(ctx, "get_rooms_by_user", stmtGetRoomsByUser, userID)
}

// GetRoomMembers returns user_id and username for every member of the room.
func (e *Engine) GetRoomMembers(ctx context.Context, roomID int64) (domain.Rows, error) {
	return e.rows(ctx, "get_room_members", stmtGetRoomMembers, roomID)
}

// AddUserToRoom creates a membership with last_read_at set to the join time.
// Adding an existing member is a no-op.
func (e *Engine) AddUserToRoom(ctx context.Context, userID, roomID int64) error {
	return e.exec(ctx, "add_user_to_room", stmtAddUserToRoom, userID, roomID, Now)
}

// RemoveUserFromRoom deletes a membership.
func (e *Engine) RemoveUserFromRoom(ctx context.Context, userID, roomID int64) error {
	return e.exec(ctx, "remove_user_from_room", stmtRemoveUserFromRoom, userID, roomID)
}

// GetUnreadMessagesCount counts messages in the room newer than the member's
// last_read_at.
func (e *Engine) GetUnreadMessagesCount(ctx context.Context, userID, roomID int64) (int64, error) {
	const op = "get_unread_messages_count"
	rows, err := e.rows(ctx, op, stmtUnreadCount, userID, roomID)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return e.parseInt(op, rows[0][0])
}

// MarkMessagesAsRead moves the member's last_read_at to now.
func (e *Engine) MarkMessagesAsRead(ctx context.Context, userID, roomID int64) error {
	return e.exec(ctx, "mark_messages_as_read", stmtMarkAsRead, Now, userID, roomID)
}

func (e *Engine) exec(ctx context.Context, op, stmt string, args ...any) error {
	return e.Execute(ctx, op, stmt, args...).Wait(ctx).Err
}

func (e *Engine) rows(ctx context.Context, op, stmt string, args ...any) (domain.Rows, error) {
	res := e.Query(ctx, op, stmt, args...).Wait(ctx)
	return res.Rows, res.Err
}

func (e *Engine) parseInt(op, s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &Error{Op: op, Err: err}
	}
	return n, nil
}
