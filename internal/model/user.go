package model

// User is the minimal identity referenced by history rows.  Users are not
// managed by this service; the configured default user is seeded at startup.
type User struct {
	ID   uint64 `json:"id"`       // users.id
	Name string `json:"userName"` // users.user_name
}
