package adapter

import (
	"encoding/json"
	"strings"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/model"
	"github.com/G-Node/wdat2-sub001/network"
)

// User is one repository account. ID is the host-free permalink.
type User struct {
	ID       string         `json:"id"`
	Username string         `json:"username,omitempty"`
	Fields   map[string]any `json:"fields"`
}

// Users is the adapted answer of the /user/ listing. Range is the server's
// selected_range, [0, 0] when absent.
type Users struct {
	List    []User `json:"users"`
	Current *User  `json:"current,omitempty"`
	Range   [2]int `json:"range"`
}

// AdaptUsers translates the response of a /user/ listing. The server names
// the logged-in account either as a full element or as a bare user name.
func AdaptUsers(resp network.Response) (Users, error) {
	if resp.Error {
		return Users{}, &responseError{message: resp.Message}
	}

	out := Users{List: []User{}}
	if resp.Data == nil {
		return out, nil
	}
	if r := resp.Data.SelectedRange; len(r) == 2 {
		out.Range = [2]int{r[0], r[1]}
	}

	for _, el := range resp.Data.Selected {
		out.List = append(out.List, userOf(el))
	}

	current, err := currentUser(resp.Data.LoggedInAs, out.List)
	if err != nil {
		return Users{}, err
	}
	out.Current = current
	return out, nil
}

func currentUser(raw json.RawMessage, known []User) (*User, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		for _, u := range known {
			if u.Username == name {
				return &u, nil
			}
		}
		return &User{Username: name, Fields: map[string]any{}}, nil
	}

	var el network.Element
	if err := json.Unmarshal(raw, &el); err != nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Adapter", "AdaptUsers", "decode logged_in_as")
	}
	u := userOf(el)
	return &u, nil
}

func userOf(el network.Element) User {
	fields := el.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	id := model.OmitHost(el.Permalink)
	if len(id) > 1 {
		id = strings.TrimSuffix(id, "/")
	}
	return User{ID: id, Username: text(fields["username"]), Fields: fields}
}
