package model

import "time"

type Organization struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Abbreviation     string    `json:"abbreviation"`
	Website          string    `json:"website"`
	Socials          string    `json:"socials"`
	LogoURL          string    `json:"logo_url"`
	QRURL            string    `json:"qr_url"`
	City             string    `json:"city"`
	MissionStatement string    `json:"mission_statement"`
	CanSelfPublish   bool      `json:"can_self_publish"`
	CanCrossPublish  bool      `json:"can_cross_publish"`
	CreatedAt        time.Time `json:"created_at"`
}
