package dto

type SignupRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Gender    string `json:"gender"`
	UserType  string `json:"userType"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	UserType string `json:"userType"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by signup and login. Child is set for child
// accounts only.
type AuthResponse struct {
	TokenResponse
	Account AccountView `json:"account"`
	Child   *ChildView  `json:"child,omitempty"`
}
