package model

type MessageResponse struct {
	Message string `json:"message"`
}
