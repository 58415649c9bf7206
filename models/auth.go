// models/auth.go
package models

// MintTokenRequest is the admin token-mint input. Tokens are issued by
// operators for already-verified actors; there is no self-service login.
type MintTokenRequest struct {
	ActorID   string `json:"actorId" validate:"required"`
	ActorType string `json:"actorType" validate:"required,oneof=business referrer admin"`
}

// TokenPair carries an access token and its refresh token.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}
