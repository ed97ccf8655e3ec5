package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/utils"
)

// Event types
const (
	EventNotificationCreated = "notification_created"
	EventTaskUpdate          = "task_update"
	EventTaskDelete          = "task_delete"
	EventProjectUpdate       = "project_update"
	EventProjectDelete       = "project_delete"
	EventPreferenceUpdate    = "preference_update"
)

type Message struct {
	ID    string      `json:"id"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub menampung semua client yang terhubung dan user pemiliknya.
type Hub struct {
	clients map[*websocket.Conn]uint // conn -> user id
	mutex   sync.Mutex
}

var hub = Hub{
	clients: make(map[*websocket.Conn]uint),
}

// RegisterClient -> menambahkan connection ke set untuk satu user
func RegisterClient(conn *websocket.Conn, userID uint) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.clients[conn] = userID
}

// UnregisterClient -> melepaskan connection
func UnregisterClient(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, conn)
	conn.Close()
}

// ClientCount -> jumlah connection aktif
func ClientCount() int {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	return len(hub.clients)
}

// BroadcastNotification -> kirim notifikasi baru hanya ke client milik user tsb
func BroadcastNotification(n models.Notification) {
	sendToUser(n.UserID, Message{
		ID:    uuid.NewString(),
		Event: EventNotificationCreated,
		Data:  n,
	})
}

// BroadcastTaskUpdate -> task dibuat/diubah, disiarkan ke semua client
func BroadcastTaskUpdate(task models.Task) {
	broadcast(Message{
		ID:    uuid.NewString(),
		Event: EventTaskUpdate,
		Data:  task,
	})
}

// BroadcastTaskDelete -> task dihapus
func BroadcastTaskDelete(taskID uint) {
	broadcast(Message{
		ID:    uuid.NewString(),
		Event: EventTaskDelete,
		Data:  map[string]uint{"task_id": taskID},
	})
}

// BroadcastProjectUpdate -> project dibuat/diubah
func BroadcastProjectUpdate(project models.Project) {
	broadcast(Message{
		ID:    uuid.NewString(),
		Event: EventProjectUpdate,
		Data:  project,
	})
}

// BroadcastProjectDelete -> project dihapus
func BroadcastProjectDelete(projectID uint) {
	broadcast(Message{
		ID:    uuid.NewString(),
		Event: EventProjectDelete,
		Data:  map[string]uint{"project_id": projectID},
	})
}

// BroadcastPreferenceUpdate -> preference user berubah (sinkronisasi antar tab)
func BroadcastPreferenceUpdate(pref models.NotificationPreference) {
	sendToUser(pref.UserID, Message{
		ID:    uuid.NewString(),
		Event: EventPreferenceUpdate,
		Data:  pref,
	})
}

// sendToUser -> kirim pesan ke semua connection milik satu user
func sendToUser(userID uint, msg Message) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling message: %v", err)
		return
	}

	for conn, uid := range hub.clients {
		if uid != userID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Printf("Error sending message to user %d: %v", userID, err)
		}
	}
}

// broadcast -> fungsi internal untuk mengirim pesan ke semua client
func broadcast(msg Message) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling message: %v", err)
		return
	}

	for conn, uid := range hub.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Printf("Error sending message to user %d: %v", uid, err)
		}
	}
}
