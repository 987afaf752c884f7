// Package command maps request lines to storage operations and renders their
// outcome as a single response line.
//
// The command table is static. Each entry declares its argument shape, the
// storage call it makes and the fixed phrases it answers with. Parsing is
// strict: integers are base 10 and 64-bit, arity is exact, and the only
// free-form argument is the trailing message body of send_message. A request
// that does not parse never reaches storage.
//
// Response phrases are part of the wire protocol; clients match on them.
package command

import (
	"context"
	"strconv"
	"strings"

	"github.com/tbourn/go-chat-tcp/internal/domain"
)

// Storage is the set of storage operations the command table drives.
// *store.Engine satisfies it.
type Storage interface {
	AddUser(ctx context.Context, username, password string) error
	UpdateUser(ctx context.Context, userID int64, password string) error
	GetUser(ctx context.Context, userID int64) (domain.Row, error)
	DeleteUser(ctx context.Context, userID int64) error

	CreateRoom(ctx context.Context, name string) error
	DeleteRoom(ctx context.Context, roomID int64) error
	GetRoomByName(ctx context.Context, name string) (int64, error)

	SendMessage(ctx context.Context, userID, roomID int64, body string) error
	GetMessagesByRoom(ctx context.Context, roomID int64) (domain.Rows, error)
	GetRoomsByUser(ctx context.Context, userID int64) (domain.Rows, error)
	GetRoomMembers(ctx context.Context, roomID int64) (domain.Rows, error)

	AddUserToRoom(ctx context.Context, userID, roomID int64) error
	RemoveUserFromRoom(ctx context.Context, userID, roomID int64) error
	GetUnreadMessagesCount(ctx context.Context, userID, roomID int64) (int64, error)
	MarkMessagesAsRead(ctx context.Context, userID, roomID int64) error
}

type argKind uint8

const (
	argWord argKind = iota // one whitespace-free token
	argInt                 // base 10, 64-bit
	argRest                // remainder of the line, verbatim
)

type arg struct {
	name   string
	kind   argKind
	secret bool // redacted in logs
}

// Response is the outcome of one request. Text excludes the line terminator.
type Response struct {
	Text string
	// Close asks the session to end after writing Text.
	Close bool
}

type handler func(ctx context.Context, s Storage, r *Request) (Response, error)

type command struct {
	name  string
	args  []arg
	run   handler
	local bool // answers without storage
}

func (c *command) usage() string {
	u := c.name
	for _, a := range c.args {
		u += " <" + a.name + ">"
	}
	return u
}

// simple answers ok or fail depending on err.
func simple(ok, fail string, err error) (Response, error) {
	if err != nil {
		return Response{Text: fail}, err
	}
	return Response{Text: ok}, nil
}

// listing answers prefix followed by the formatted rows, or fail.
func listing(prefix, fail string, rows domain.Rows, err error) (Response, error) {
	if err != nil {
		return Response{Text: fail}, err
	}
	return Response{Text: prefix + rows.Format()}, nil
}

var (
	userArg     = arg{name: "user_id", kind: argInt}
	roomArg     = arg{name: "room_id", kind: argInt}
	passwordArg = arg{name: "password", kind: argWord, secret: true}
)

// table lists every command in the order help reports them.
var table = []*command{
	{
		name: "add_user",
		args: []arg{{name: "username", kind: argWord}, passwordArg},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			return simple("User added successfully", "Error adding user",
				s.AddUser(ctx, r.Words[0], r.Words[1]))
		},
	},
	{
		name: "update_user",
		args: []arg{userArg, {name: "new_password", kind: argWord, secret: true}},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			return simple("User updated successfully", "Error updating user",
				s.UpdateUser(ctx, r.Ints[0], r.Words[0]))
		},
	},
	{
		name: "get_user",
		args: []arg{userArg},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			row, err := s.GetUser(ctx, r.Ints[0])
			if err != nil {
				return Response{Text: "Error fetching user"}, err
			}
			return Response{Text: "User info: " + row.Join()}, nil
		},
	},
	{
		name: "create_room",
		args: []arg{{name: "room_name", kind: argWord}},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			return simple("Room created successfully", "Error creating room",
				s.CreateRoom(ctx, r.Words[0]))
		},
	},
	{
		name: "delete_room",
		args: []arg{roomArg},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			return simple("Room deleted successfully", "Error deleting room",
				s.DeleteRoom(ctx, r.Ints[0]))
		},
	},
	{
		name: "get_messages_by_room",
		args: []arg{roomArg},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			rows, err := s.GetMessagesByRoom(ctx, r.Ints[0])
			return listing("Messages: ", "Error fetching messages", rows, err)
		},
	},
	{
		name: "get_rooms_by_user",
		args: []arg{userArg},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			rows, err := s.GetRoomsByUser(ctx, r.Ints[0])
			return listing("Rooms: ", "Error fetching rooms", rows, err)
		},
	},
	{
		name: "get_room_members",
		args: []arg{roomArg},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			rows, err := s.GetRoomMembers(ctx, r.Ints[0])
			return listing("Room members: ", "Error fetching room members", rows, err)
		},
	},
	{
		name: "delete_user",
		args: []arg{userArg},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			return simple("User deleted successfully", "Error deleting user",
				s.DeleteUser(ctx, r.Ints[0]))
		},
	},
	{
		name: "send_message",
		args: []arg{userArg, roomArg, {name: "message", kind: argRest}},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			return simple("Message sent successfully", "Error sending message",
				s.SendMessage(ctx, r.Ints[0], r.Ints[1], r.Rest))
		},
	},
	{
		name: "add_user_to_room",
		args: []arg{userArg, roomArg},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			return simple("User added to room successfully", "Error adding user to room",
				s.AddUserToRoom(ctx, r.Ints[0], r.Ints[1]))
		},
	},
	{
		name: "remove_user_from_room",
		args: []arg{userArg, roomArg},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			return simple("User removed from room successfully", "Error removing user from room",
				s.RemoveUserFromRoom(ctx, r.Ints[0], r.Ints[1]))
		},
	},
	{
		name: "get_unread_messages_count",
		args: []arg{userArg, roomArg},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			n, err := s.GetUnreadMessagesCount(ctx, r.Ints[0], r.Ints[1])
			if err != nil {
				return Response{Text: "Error fetching unread messages count"}, err
			}
			return Response{Text: "Unread messages count: " + strconv.FormatInt(n, 10)}, nil
		},
	},
	{
		name: "mark_messages_as_read",
		args: []arg{userArg, roomArg},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			return simple("Messages marked as read successfully", "Error marking messages as read",
				s.MarkMessagesAsRead(ctx, r.Ints[0], r.Ints[1]))
		},
	},
	{
		name: "get_room_by_name",
		args: []arg{{name: "room_name", kind: argWord}},
		run: func(ctx context.Context, s Storage, r *Request) (Response, error) {
			id, err := s.GetRoomByName(ctx, r.Words[0])
			if err != nil {
				return Response{Text: "Error fetching room"}, err
			}
			return Response{Text: "Room id: " + strconv.FormatInt(id, 10)}, nil
		},
	},
	{
		name:  "help",
		local: true,
		run: func(context.Context, Storage, *Request) (Response, error) {
			return Response{Text: helpText}, nil
		},
	},
	{
		name:  "quit",
		local: true,
		run: func(context.Context, Storage, *Request) (Response, error) {
			return Response{Text: "Bye", Close: true}, nil
		},
	},
}

var (
	byName   = map[string]*command{}
	helpText string
)

func init() {
	for _, c := range table {
		byName[c.name] = c
	}
	helpText = "Commands: " + strings.Join(Names(), " ")
}

// Names returns every command name in table order.
func Names() []string {
	out := make([]string, len(table))
	for i, c := range table {
		out[i] = c.name
	}
	return out
}
