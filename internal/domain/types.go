package domain

import "github.com/google/uuid"

type AccountID = uuid.UUID
type ChildProfileID = uuid.UUID
type SessionID = uuid.UUID
type CredentialID = uuid.UUID
type CaptureID = uuid.UUID
type MessageID = uuid.UUID

// Role and Gender carry the wire codes the mobile clients send.
type Role string

const (
	RoleParent Role = "0"
	RoleChild  Role = "1"
	RoleAdmin  Role = "2"
)

func (r Role) Valid() bool {
	switch r {
	case RoleParent, RoleChild, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	switch r {
	case RoleParent:
		return "parent"
	case RoleChild:
		return "child"
	case RoleAdmin:
		return "admin"
	}
	return "unknown"
}

type Gender string

const (
	GenderMale   Gender = "1"
	GenderFemale Gender = "2"
)

func (g Gender) Valid() bool { return g == GenderMale || g == GenderFemale }
