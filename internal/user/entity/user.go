package entity

// User is a row of the `users` table. Email is the business key; it mirrors
// the auth account's email but may lag behind it during an email change.
// Image is a public storage URL or empty.
type User struct {
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`
	Image    string `json:"image" db:"image"`
}

// CreateUserRequest is the body of the admin-create-user function.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Image    string `json:"image"`
}

// CreateUserResponse is the success body of the admin-create-user function.
type CreateUserResponse struct {
	OK  bool   `json:"ok"`
	UID string `json:"uid"`
}

// Row projects the request onto the table columns the client may see.
func (r CreateUserRequest) Row() User {
	return User{Username: r.Username, Email: r.Email, Image: r.Image}
}
