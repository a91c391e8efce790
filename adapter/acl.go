package adapter

import (
	"fmt"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/model"
)

// ACL changes who may see an object. SharedWith maps user names to their
// access level.
type ACL struct {
	ID          string         `json:"id"`
	SafetyLevel any            `json:"safety_level,omitempty"`
	SharedWith  map[string]int `json:"shared_with,omitempty"`
}

// AdaptFromACL builds the request for the object's /acl/ endpoint. The id
// must be complete, "/category/type/id", and at least one of SafetyLevel
// and SharedWith must be set.
func AdaptFromACL(acl ACL) (Request, error) {
	if acl.ID == "" {
		return Request{}, errors.WrapInvalid(
			fmt.Errorf("%w: unable to generate URL without ID", errors.ErrInvalidID),
			"Adapter", "AdaptFromACL", "resolve id")
	}
	ident, err := model.ParseID(acl.ID)
	if err != nil {
		return Request{}, err
	}
	if !ident.Complete() {
		return Request{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q should look like /metadata/section/39487", errors.ErrInvalidID, acl.ID),
			"Adapter", "AdaptFromACL", "resolve id")
	}

	if acl.SafetyLevel == nil && acl.SharedWith == nil {
		return Request{}, errors.WrapInvalid(errors.ErrNoACL, "Adapter", "AdaptFromACL", "build payload")
	}

	data := map[string]any{}
	if acl.SafetyLevel != nil {
		data["safety_level"] = wireSafetyLevel(acl.SafetyLevel)
	}
	if acl.SharedWith != nil {
		shared := make(map[string]any, len(acl.SharedWith))
		for user, level := range acl.SharedWith {
			shared[user] = level
		}
		data["shared_with"] = shared
	}

	return Request{URL: ident.Path() + "/acl/", Data: data}, nil
}
