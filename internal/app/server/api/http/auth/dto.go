package auth

import "time"

type loginInput struct {
	Body LoginRequest
}

type LoginRequest struct {
	OrganizationID string `json:"organization_id" minLength:"1" doc:"Organization the member belongs to"`
	Login          string `json:"login" minLength:"1"`
	Password       string `json:"password" minLength:"1"`
	DeviceID       string `json:"device_id" required:"false" maxLength:"128" doc:"Stable id of the client device"`
}

type loginOutput struct {
	Body LoginResponse
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	MemberID  string    `json:"member_id"`
	Role      string    `json:"role"`
}
