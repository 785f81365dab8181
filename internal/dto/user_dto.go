package dto

type RegisterResponse struct {
	UserId string `json:"user_id"`
}
