package relay

import (
	"github.com/roomcast/roomcast/pkg/com"
)

// User binds a socket connection to its chat display name.
type User struct {
	*com.SocketClient
	name string
}

func NewUser(conn *com.SocketClient, name string) *User {
	return &User{SocketClient: conn, name: name}
}

func (u *User) Id() string   { return u.SocketClient.Id().String() }
func (u *User) Name() string { return u.name }
