package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/G-Node/wdat2-sub001/adapter"
	"github.com/G-Node/wdat2-sub001/message"
)

// UsersURL lists the repository accounts and names the logged-in one.
const UsersURL = "/user/"

// users loads the account list. Reply data is an adapter.Users.
func (d *Dispatcher) users(ctx context.Context, req message.Request) message.Reply {
	reply := message.ReplyTo(req)

	res := d.exec.DoGET(ctx, []string{UsersURL}, 0)
	if resp, failed := res.FirstError(); failed {
		return reply.Fail(resp.Message)
	}

	users, err := adapter.AdaptUsers(res.Primary[0])
	if err != nil {
		return reply.Fail(err.Error())
	}
	data, err := json.Marshal(users)
	if err != nil {
		return reply.Fail(err.Error())
	}
	reply.Data = data
	return reply
}
