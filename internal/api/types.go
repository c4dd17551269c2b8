package api

import "encoding/json"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MemberRequest is the body of the set member endpoints. Member may be any
// JSON value; Expires uses the forms accepted by jsredis.ParseExpiration.
type MemberRequest struct {
	Member  json.RawMessage `json:"member"`
	Expires string          `json:"expires,omitempty"`
}

type MembershipDTO struct {
	Member bool `json:"member"`
}

type DeletedDTO struct {
	Deleted int64 `json:"deleted"`
}

type RemovedDTO struct {
	Removed int64 `json:"removed"`
}

type MembersDTO struct {
	Members []json.RawMessage `json:"members"`
}

type PurgeDTO struct {
	Expired int `json:"expired"`
}

type ReadyDTO struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
}
