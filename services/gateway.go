package services

import (
	"fmt"

	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/realtime"
)

// PushAction -> quick action yang ditampilkan browser pada push notification.
type PushAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// PushPayload -> isi push notification yang dikirim ke browser.
type PushPayload struct {
	Title   string       `json:"title"`
	Message string       `json:"message"`
	Tag     string       `json:"tag"`
	URL     string       `json:"url"`
	Actions []PushAction `json:"actions,omitempty"`
}

// DeliveryGateway memisahkan worker dari transport pengiriman: event realtime
// ke client yang terhubung dan web push ke browser. Test memakai implementasi
// fake.
type DeliveryGateway interface {
	EmitNotification(n models.Notification)
	SendPush(userID uint, payload PushPayload) (int, error)
}

// DefaultGateway -> hub websocket + web push service.
type DefaultGateway struct {
	Push *PushService
}

func NewDefaultGateway(push *PushService) *DefaultGateway {
	return &DefaultGateway{Push: push}
}

func (g *DefaultGateway) EmitNotification(n models.Notification) {
	realtime.BroadcastNotification(n)
}

func (g *DefaultGateway) SendPush(userID uint, payload PushPayload) (int, error) {
	return g.Push.SendPush(userID, payload)
}

// buildPushPayload menyusun payload push untuk sebuah notifikasi. URL menunjuk
// ke project-nya kalau notifikasi menyangkut tepat satu project, selain itu ke
// home. Reminder/overdue untuk satu task membawa quick actions.
func buildPushPayload(n models.Notification, tasks []models.Task) PushPayload {
	payload := PushPayload{
		Title:   n.Title,
		Message: n.Message,
		Tag:     pushTag(n),
		URL:     targetURL(tasks),
	}

	if n.TaskID != nil && (n.Type == models.NotifTypeReminder || n.Type == models.NotifTypeOverdue) {
		payload.Actions = []PushAction{
			{Action: "complete", Title: "Mark complete"},
			{Action: "snooze", Title: "Snooze 1 day"},
		}
	}

	return payload
}

// pushTag -> tag stabil supaya browser meng-collapse push duplikat.
func pushTag(n models.Notification) string {
	if n.TaskID != nil {
		return fmt.Sprintf("%s-%d", n.Type, *n.TaskID)
	}
	return fmt.Sprintf("%s-%d", n.Type, n.UserID)
}

func targetURL(tasks []models.Task) string {
	var projectID *uint
	for _, t := range tasks {
		if t.ProjectID == nil {
			return "/"
		}
		if projectID == nil {
			projectID = t.ProjectID
		} else if *projectID != *t.ProjectID {
			return "/"
		}
	}
	if projectID == nil {
		return "/"
	}
	return fmt.Sprintf("/projects/%d", *projectID)
}
