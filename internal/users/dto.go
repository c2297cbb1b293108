package users

// CreateUserForm is the payload for POST /users.
type CreateUserForm struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72,strongpassword"`
	Role     string `json:"role" validate:"required,oneof=admin user"`
}

// UpdateUserForm is the payload for PUT /users/{id}. Absent fields are left
// untouched; a present password is re-hashed.
type UpdateUserForm struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72,strongpassword"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin user"`
}

// ListFilters narrows and pages the user listing. Email is a substring match,
// role an exact match.
type ListFilters struct {
	Email string
	Role  string
	Page  int
	Limit int
}

// ListResult is the paginated listing envelope.
type ListResult struct {
	Data  []User `json:"data"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}
