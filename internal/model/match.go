package model

type MatchRequest struct {
	BusinessDetails string `json:"businessDetails"`
}
