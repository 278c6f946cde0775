package internal

import "encoding/json"

// Hours is an experience hour count. Frontends send it either as a JSON
// number or a string; both decode to the string form.
type Hours string

func (h *Hours) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*h = Hours(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*h = Hours(n.String())
	return nil
}

// Application is a stored job-application submission, keyed by the
// caller-supplied ID. Status, ReviewedAt and ReviewedBy stay empty
// until the first review.
type Application struct {
	ID               string `json:"id"`
	UserID           string `json:"userId"`
	FullName         string `json:"fullName"`
	Position         string `json:"position"`
	Email            string `json:"email"`
	LicenseNumber    string `json:"licenseNumber"`
	Experience       Hours  `json:"experience"`
	Motivation       string `json:"motivation"`
	ExperienceDetail string `json:"experienceDetail"`
	UserAvatar       string `json:"userAvatar,omitempty"`
	WebhookURL       string `json:"webhookUrl,omitempty"`
	Status           string `json:"status,omitempty"`
	ReviewedAt       string `json:"reviewedAt,omitempty"`
	ReviewedBy       string `json:"reviewedBy,omitempty"`
}

// UserProfile is the normalized result of a Discord OAuth exchange.
// Avatar is a fully constructed CDN URL. Never stored.
type UserProfile struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
	Email         string `json:"email"`
}

type discordTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type discordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
	Email         string `json:"email"`
}
