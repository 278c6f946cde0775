package internal

import (
	"errors"

	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

// Routes wires the HTTP surface. CORS and logging middleware are added
// by the caller.
func Routes(r *gin.Engine, store Store, oauth *OAuthClient, notifier *Notifier) {
	r.GET("/", Health())

	api := r.Group("/api")
	{
		api.POST("/auth/discord", DiscordAuth(oauth))
		api.POST("/webhook/application", RelayWebhook(notifier)) // deprecated, kept for older frontends

		api.GET("/applications", ListApplications(store))
		api.GET("/applications/:userId", ListApplicationsByUser(store))
		api.POST("/applications", SubmitApplication(store, notifier))
		api.PATCH("/applications/:id", UpdateApplication(store))
	}
}

func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": Version})
	}
}

// ------------------- Auth -------------------

// POST /api/auth/discord {code}
func DiscordAuth(oauth *OAuthClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Code string `json:"code"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
			c.JSON(400, gin.H{"error": "code is required"})
			return
		}

		profile, err := oauth.Exchange(c.Request.Context(), req.Code)
		if err != nil {
			var ue *UpstreamError
			if errors.As(err, &ue) {
				c.JSON(500, gin.H{"error": "discord authentication failed", "details": ue.Detail})
				return
			}
			c.JSON(500, gin.H{"error": "discord authentication failed"})
			return
		}
		c.JSON(200, profile)
	}
}

// ------------------- Webhook relay (deprecated) -------------------

// POST /api/webhook/application {application, webhookUrl}
// Superseded by the submission-triggered notification; delivery here is
// synchronous and failures surface to the caller.
func RelayWebhook(notifier *Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Application *Application `json:"application"`
			WebhookURL  string       `json:"webhookUrl"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Application == nil || req.WebhookURL == "" {
			c.JSON(400, gin.H{"error": "application and webhookUrl are required"})
			return
		}

		if err := notifier.Send(c.Request.Context(), req.WebhookURL, *req.Application); err != nil {
			details := err.Error()
			var ue *UpstreamError
			if errors.As(err, &ue) {
				details = ue.Detail
			}
			c.JSON(500, gin.H{"error": "failed to send webhook", "details": details})
			return
		}
		c.JSON(200, gin.H{"success": true, "message": "webhook sent"})
	}
}

// ------------------- Applications -------------------

func ListApplications(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := store.All(c.Request.Context())
		if err != nil {
			c.JSON(500, gin.H{"error": "failed to list applications"})
			return
		}
		c.JSON(200, gin.H{"applications": apps})
	}
}

func ListApplicationsByUser(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := store.ByOwner(c.Request.Context(), c.Param("userId"))
		if err != nil {
			c.JSON(500, gin.H{"error": "failed to list applications"})
			return
		}
		c.JSON(200, gin.H{"applications": apps})
	}
}

// POST /api/applications — stores the record and, when a webhookUrl is
// present, kicks off the notification in the background. The response
// never waits on, or fails because of, the webhook.
func SubmitApplication(store Store, notifier *Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var app Application
		if err := c.ShouldBindJSON(&app); err != nil {
			c.JSON(400, gin.H{"error": "bad json"})
			return
		}
		if app.ID == "" {
			c.JSON(400, gin.H{"error": "id is required"})
			return
		}

		stored, err := store.Put(c.Request.Context(), app)
		if err != nil {
			c.JSON(500, gin.H{"error": "failed to store application"})
			return
		}

		if stored.WebhookURL != "" {
			notifier.Dispatch(stored.WebhookURL, stored)
		}
		c.JSON(200, gin.H{"success": true, "application": stored})
	}
}

// PATCH /api/applications/:id {status, reviewedBy}
func UpdateApplication(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status     string `json:"status"`
			ReviewedBy string `json:"reviewedBy"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "bad json"})
			return
		}

		app, err := store.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.ReviewedBy)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				c.JSON(404, gin.H{"error": "application not found"})
				return
			}
			c.JSON(500, gin.H{"error": "failed to update application"})
			return
		}
		c.JSON(200, gin.H{"success": true, "application": app})
	}
}
