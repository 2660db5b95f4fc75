package users

// PasswordMinLength is the shortest password accepted over the API.
const PasswordMinLength = 5

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=5,max=72"`
	Name     string `json:"name" validate:"required,max=255"`
}

type replaceProfileRequest struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Name     string  `json:"name" validate:"required,max=255"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=5,max=72"`
}

type patchProfileRequest struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=5,max=72"`
}

// UserResponse is the public representation of a user. The password is write only.
type UserResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func toResponse(u User) UserResponse {
	return UserResponse{Email: u.Email, Name: u.Name}
}
