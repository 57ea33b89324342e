package screen

import "strings"

const minPasswordLen = 6

// ValidationError is a form error caught before any network call. Message is
// shown to the user as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// ValidateLogin checks the login form.
func ValidateLogin(email, password string) error {
	if blank(email) || password == "" {
		return invalid("Please fill in all fields")
	}
	return nil
}

// ValidateSignup checks the signup form.
func ValidateSignup(username, email, password, confirm string) error {
	if blank(username) || blank(email) || password == "" || confirm == "" {
		return invalid("Please fill in all fields")
	}
	if password != confirm {
		return invalid("Passwords do not match")
	}
	if len(password) < minPasswordLen {
		return invalid("Password must be at least 6 characters")
	}
	return nil
}

// ValidateUserForm checks the admin edit form. A password is only taken when
// creating an account.
func ValidateUserForm(f UserForm, creating bool) error {
	if blank(f.Username) || blank(f.Email) || (creating && f.Password == "") {
		return invalid("Please fill in all fields!")
	}
	if creating && len(f.Password) < minPasswordLen {
		return invalid("Password must be at least 6 characters")
	}
	return nil
}

// ValidateProfile checks the self-profile form.
func ValidateProfile(username, email string) error {
	if blank(username) || blank(email) {
		return invalid("Please enter Username and Email.")
	}
	return nil
}

// ValidatePasswordChange checks the change-password form.
func ValidatePasswordChange(password, confirm string) error {
	if len(password) < minPasswordLen {
		return invalid("New password must be at least 6 characters long.")
	}
	if password != confirm {
		return invalid("Password confirmation does not match.")
	}
	return nil
}
