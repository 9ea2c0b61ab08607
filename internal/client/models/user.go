package models

// User is a registered account as seen by other users.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Group is a named set of users owned by its creator.
type Group struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatorID int64  `json:"creatorId"`
}

// AuthResult is the answer of the login and signup endpoints.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
