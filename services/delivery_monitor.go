package services

import (
	"sync"
	"time"

	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/utils"
	"gorm.io/gorm"
)

// DeliveryMetrics menyimpan metrik pengiriman push.
type DeliveryMetrics struct {
	Attempted int64
	Delivered int64
	Failed    int64
	Retried   int64
}

type retryItem struct {
	NotificationID uint
	UserID         uint
	Payload        PushPayload
	Attempts       int
}

// DeliveryMonitor menangani retry untuk push yang gagal terkirim. Pengiriman
// push bersifat best-effort: kegagalan tidak pernah menggagalkan sweep, hanya
// masuk antrian ini dan dicoba ulang terpisah.
type DeliveryMonitor struct {
	db            *gorm.DB
	gateway       DeliveryGateway
	metrics       DeliveryMetrics
	retryQueue    []retryItem
	retryInterval time.Duration
	maxAttempts   int
	stopChan      chan struct{}
	mutex         sync.Mutex
}

func NewDeliveryMonitor(db *gorm.DB, gateway DeliveryGateway) *DeliveryMonitor {
	return &DeliveryMonitor{
		db:            db,
		gateway:       gateway,
		retryQueue:    make([]retryItem, 0),
		retryInterval: 5 * time.Minute,
		maxAttempts:   3,
		stopChan:      make(chan struct{}),
	}
}

// Start memulai goroutine yang menguras antrian retry
func (dm *DeliveryMonitor) Start() {
	go dm.processRetryQueue()
	utils.InfoLogger.Println("Delivery monitor started")
}

func (dm *DeliveryMonitor) Stop() {
	close(dm.stopChan)
}

// AddToRetryQueue menambahkan push yang gagal ke antrian retry
func (dm *DeliveryMonitor) AddToRetryQueue(notificationID, userID uint, payload PushPayload) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	for _, item := range dm.retryQueue {
		if item.NotificationID == notificationID {
			return
		}
	}

	dm.retryQueue = append(dm.retryQueue, retryItem{
		NotificationID: notificationID,
		UserID:         userID,
		Payload:        payload,
	})
	utils.InfoLogger.Printf("Added notification %d to push retry queue", notificationID)
}

func (dm *DeliveryMonitor) processRetryQueue() {
	ticker := time.NewTicker(dm.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			dm.drainQueue()
		case <-dm.stopChan:
			return
		}
	}
}

func (dm *DeliveryMonitor) drainQueue() {
	dm.mutex.Lock()
	if len(dm.retryQueue) == 0 {
		dm.mutex.Unlock()
		return
	}
	queue := make([]retryItem, len(dm.retryQueue))
	copy(queue, dm.retryQueue)
	dm.retryQueue = make([]retryItem, 0)
	dm.mutex.Unlock()

	utils.InfoLogger.Printf("Processing push retry queue with %d notifications", len(queue))

	for _, item := range queue {
		dm.retryPush(item)
	}
}

func (dm *DeliveryMonitor) retryPush(item retryItem) {
	item.Attempts++

	dm.mutex.Lock()
	dm.metrics.Retried++
	dm.mutex.Unlock()

	delivered, err := dm.gateway.SendPush(item.UserID, item.Payload)
	if err != nil || delivered == 0 {
		if item.Attempts >= dm.maxAttempts {
			utils.ErrorLogger.Printf("Giving up on push for notification %d after %d attempts",
				item.NotificationID, item.Attempts)
			dm.recordResult(false)
			return
		}
		dm.mutex.Lock()
		dm.retryQueue = append(dm.retryQueue, item)
		dm.mutex.Unlock()
		return
	}

	now := time.Now()
	if err := dm.db.Model(&models.Notification{}).
		Where("id = ?", item.NotificationID).
		Update("sent_at", now).Error; err != nil {
		utils.ErrorLogger.Printf("Error marking notification %d as sent: %v", item.NotificationID, err)
	}
	dm.recordResult(true)
	utils.InfoLogger.Printf("Push for notification %d delivered on retry", item.NotificationID)
}

func (dm *DeliveryMonitor) recordResult(delivered bool) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.metrics.Attempted++
	if delivered {
		dm.metrics.Delivered++
	} else {
		dm.metrics.Failed++
	}
}

// RecordAttempt mencatat hasil pengiriman langsung (bukan lewat retry queue)
func (dm *DeliveryMonitor) RecordAttempt(delivered bool) {
	dm.recordResult(delivered)
}

// GetMetrics mengembalikan metrik pengiriman saat ini
func (dm *DeliveryMonitor) GetMetrics() DeliveryMetrics {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()
	return dm.metrics
}
