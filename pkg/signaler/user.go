package signaler

import (
	"sync"

	"github.com/snapbooth/snapbooth/pkg/com"
)

// User is one push-transport connection, optionally bound to a room
// after its join-room frame.
type User struct {
	*com.Client

	mu   sync.Mutex
	room string
	peer string
}

func NewUser(client *com.Client) *User { return &User{Client: client} }

func (u *User) join(room, peer string) {
	u.mu.Lock()
	u.room, u.peer = room, peer
	u.mu.Unlock()
}

func (u *User) membership() (room, peer string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.room, u.peer
}

func (u *User) clear() {
	u.mu.Lock()
	u.room, u.peer = "", ""
	u.mu.Unlock()
}
