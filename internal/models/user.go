package models

// Role names carried in the identity token
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// CurrentUser is the authenticated caller. The zero value is an anonymous
// visitor.
type CurrentUser struct {
	ID    ID     `json:"id"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`

	// Token is forwarded to the foundation API on the user's behalf
	Token string `json:"-"`
}

// Anonymous reports whether nobody is logged in
func (u CurrentUser) Anonymous() bool {
	return u.ID.IsZero()
}

// IsAdmin reports whether the user holds the admin role
func (u CurrentUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserProfile is the read-only profile kept by the foundation API
type UserProfile struct {
	Category string `json:"category"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
}
