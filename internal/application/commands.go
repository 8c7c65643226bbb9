package application

import "time"

type LoginParams struct {
	Service         string
	Identifier      string
	Password        string
	AuthFactorToken string
}

type CreateAccountParams struct {
	Service           string
	Email             string
	Password          string
	Handle            string
	BirthDate         time.Time
	InviteCode        string
	VerificationPhone string
	VerificationCode  string
}
