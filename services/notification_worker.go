package services

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/utils"
	"gorm.io/gorm"
)

// SweepStats -> jumlah notifikasi yang dibuat per fase dalam satu sweep.
type SweepStats struct {
	Reminders      int `json:"reminders"`
	Overdue        int `json:"overdue"`
	DailySummaries int `json:"daily_summaries"`
	OverdueDigests int `json:"overdue_digests"`
}

// NotificationWorker adalah sweep dispatcher: proses periodik dengan empat
// fase (reminder, overdue, daily summary, overdue digest) yang membaca
// pekerjaan yang sudah jatuh tempo, menerapkan gating preference + dedup,
// membuat record Notification, dan menyerahkan pengiriman ke gateway.
// Fase berjalan berurutan, tidak pernah paralel; semua query per-user/per-task
// di-batch di depan loop supaya tidak jadi badai N+1.
type NotificationWorker struct {
	db        *gorm.DB
	gateway   DeliveryGateway
	scheduler *ReminderScheduler

	// Monitor menampung retry push yang gagal; boleh nil.
	Monitor *DeliveryMonitor

	Interval   time.Duration
	GraceDelay time.Duration

	// now bisa di-override di test (in-package)
	now func() time.Time

	cron       *cron.Cron
	graceTimer *time.Timer
	mu         sync.Mutex
	started    bool
}

func NewNotificationWorker(db *gorm.DB, gateway DeliveryGateway) *NotificationWorker {
	return &NotificationWorker{
		db:         db,
		gateway:    gateway,
		scheduler:  NewReminderScheduler(db),
		Interval:   time.Minute,
		GraceDelay: 10 * time.Second,
		now:        time.Now,
	}
}

// Start memulai sweep loop: sweep pertama setelah grace delay singkat, lalu
// setiap Interval. Sweep grace dan sweep terjadwal sama-sama lewat chain yang
// sama: SkipIfStillRunning menjamin hanya satu sweep berjalan sekaligus dalam
// proses ini, Recover menangkap-dan-log panic supaya satu sweep buruk tidak
// mematikan worker -- tick berikutnya mencoba lagi.
func (w *NotificationWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	logger := cron.PrintfLogger(utils.ErrorLogger)
	job := cron.NewChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	).Then(cron.FuncJob(w.runSweep))

	w.cron = cron.New()
	w.cron.Schedule(cron.Every(w.Interval), job)
	w.graceTimer = time.AfterFunc(w.GraceDelay, job.Run)
	w.cron.Start()

	utils.InfoLogger.Printf("Notification worker started (interval %s)", w.Interval)
}

func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.started = false

	if w.graceTimer != nil {
		w.graceTimer.Stop()
	}
	ctx := w.cron.Stop()
	<-ctx.Done()
	utils.InfoLogger.Println("Notification worker stopped")
}

var (
	globalWorkerMu sync.Mutex
	globalWorker   *NotificationWorker
)

// StartGlobalWorker menjamin tepat satu sweep loop per proses, aman terhadap
// registrasi ganda (hot reload). Pemanggilan berikutnya mengembalikan worker
// yang sudah jalan.
func StartGlobalWorker(db *gorm.DB, gateway DeliveryGateway) *NotificationWorker {
	globalWorkerMu.Lock()
	defer globalWorkerMu.Unlock()
	if globalWorker != nil {
		return globalWorker
	}

	globalWorker = NewNotificationWorker(db, gateway)
	if v := os.Getenv("NOTIFICATION_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			globalWorker.Interval = d
		}
	}
	globalWorker.Start()
	return globalWorker
}

// StopGlobalWorker menghentikan dan melepas worker global (untuk test).
func StopGlobalWorker() {
	globalWorkerMu.Lock()
	defer globalWorkerMu.Unlock()
	if globalWorker != nil {
		globalWorker.Stop()
		globalWorker = nil
	}
}

func (w *NotificationWorker) runSweep() {
	stats := w.ProcessNotifications(nil)
	if stats.Reminders+stats.Overdue+stats.DailySummaries+stats.OverdueDigests > 0 {
		utils.InfoLogger.Printf("Sweep complete: %d reminders, %d overdue, %d summaries, %d digests",
			stats.Reminders, stats.Overdue, stats.DailySummaries, stats.OverdueDigests)
	}
}

// ProcessNotifications menjalankan keempat fase berurutan. scopeUserID != nil
// membatasi KANDIDAT ke task/preference user tsb (trigger "check now" dari
// user); nil berarti full sweep. Penerima tidak ikut dibatasi: reminder yang
// fired dikonsumsi one-shot, jadi semua stakeholder task kandidat harus
// dinotifikasi sekarang atau occurrence-nya hilang untuk mereka.
func (w *NotificationWorker) ProcessNotifications(scopeUserID *uint) SweepStats {
	var stats SweepStats
	stats.Reminders = w.processReminders(scopeUserID)
	stats.Overdue = w.processOverdue(scopeUserID)
	stats.DailySummaries = w.processDailySummaries(scopeUserID)
	stats.OverdueDigests = w.processOverdueDigests(scopeUserID)
	return stats
}

// processReminders: task dengan reminder_at <= now yang belum selesai. Dedup
// key (task, user, instant reminder) -- instant-nya ikut di-key supaya
// reminder yang dijadwalkan ulang ke instant lain dianggap occurrence baru.
// Setelah diproses reminder_at dikosongkan tanpa syarat (one-shot) dan
// scheduler dipanggil ulang fire-and-forget untuk rule berikutnya.
func (w *NotificationWorker) processReminders(scope *uint) int {
	now := w.now()

	q := w.db.Where("reminder_at IS NOT NULL AND reminder_at <= ? AND completed_at IS NULL", now)
	if scope != nil {
		q = q.Where("owner_id = ? OR assignee_id = ?", *scope, *scope)
	}
	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		utils.ErrorLogger.Printf("Error querying due reminders: %v", err)
		return 0
	}
	if len(tasks) == 0 {
		return 0
	}

	prefs, err := loadPreferences(w.db, stakeholderSet(tasks))
	if err != nil {
		utils.ErrorLogger.Printf("Error loading preferences: %v", err)
		return 0
	}

	taskIDs := make([]uint, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}

	var existing []models.Notification
	if err := w.db.Where("type = ? AND task_id IN ?", models.NotifTypeReminder, taskIDs).
		Find(&existing).Error; err != nil {
		utils.ErrorLogger.Printf("Error loading existing reminder notifications: %v", err)
		return 0
	}
	seen := make(map[string]bool, len(existing))
	for _, n := range existing {
		if n.TaskID != nil && n.ScheduledFor != nil {
			seen[reminderKey(*n.TaskID, n.UserID, *n.ScheduledFor)] = true
		}
	}

	created := 0
	for i := range tasks {
		task := tasks[i]
		firedAt := *task.ReminderAt

		for _, uid := range task.Stakeholders() {
			pref, ok := prefs[uid]
			if !ok || !pref.AnyChannelEnabled() {
				continue
			}
			if inQuietHours(pref, now) {
				continue
			}

			key := reminderKey(task.ID, uid, firedAt)
			if seen[key] {
				continue
			}

			message := fmt.Sprintf("Reminder: %q", task.Title)
			if task.DueDate != nil {
				message = fmt.Sprintf("%q is due %s", task.Title, utils.FormatDueDate(*task.DueDate))
			}
			notif := models.Notification{
				UserID:       uid,
				TaskID:       &task.ID,
				Type:         models.NotifTypeReminder,
				Title:        "Task reminder",
				Message:      message,
				Metadata:     taskMetadata(task),
				ScheduledFor: &firedAt,
			}
			if err := w.createAndDeliver(&notif, pref, []models.Task{task}); err != nil {
				utils.ErrorLogger.Printf("Error creating reminder notification for task %d user %d: %v",
					task.ID, uid, err)
				continue
			}
			seen[key] = true
			created++
		}

		// One-shot: kosongkan lalu hitung ulang occurrence berikutnya.
		// Rescheduling fire-and-forget -- kegagalannya di-log, tidak
		// menggagalkan sweep.
		if err := w.db.Model(&models.Task{}).
			Where("id = ?", task.ID).
			Update("reminder_at", nil).Error; err != nil {
			utils.ErrorLogger.Printf("Error clearing reminder for task %d: %v", task.ID, err)
			continue
		}
		go w.rescheduleTask(task.ID)
	}

	return created
}

func (w *NotificationWorker) rescheduleTask(taskID uint) {
	defer func() {
		if r := recover(); r != nil {
			utils.ErrorLogger.Printf("Panic rescheduling task %d: %v", taskID, r)
		}
	}()
	if err := w.scheduler.ScheduleNextReminder(taskID); err != nil {
		utils.ErrorLogger.Printf("Error rescheduling reminder for task %d: %v", taskID, err)
	}
}

// processOverdue: task dengan due date lewat yang belum selesai. Dedup key
// hanya (task, user) -- sekali dibuat, notifikasi overdue tidak pernah dibuat
// lagi untuk pasangan itu berapa lama pun task-nya menggantung.
func (w *NotificationWorker) processOverdue(scope *uint) int {
	now := w.now()
	todayStart := now.UTC().Truncate(24 * time.Hour)

	q := w.db.Where("due_date IS NOT NULL AND due_date < ? AND completed_at IS NULL", todayStart)
	if scope != nil {
		q = q.Where("owner_id = ? OR assignee_id = ?", *scope, *scope)
	}
	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		utils.ErrorLogger.Printf("Error querying overdue tasks: %v", err)
		return 0
	}
	if len(tasks) == 0 {
		return 0
	}

	prefs, err := loadPreferences(w.db, stakeholderSet(tasks))
	if err != nil {
		utils.ErrorLogger.Printf("Error loading preferences: %v", err)
		return 0
	}

	taskIDs := make([]uint, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}

	var existing []models.Notification
	if err := w.db.Where("type = ? AND task_id IN ?", models.NotifTypeOverdue, taskIDs).
		Find(&existing).Error; err != nil {
		utils.ErrorLogger.Printf("Error loading existing overdue notifications: %v", err)
		return 0
	}
	seen := make(map[string]bool, len(existing))
	for _, n := range existing {
		if n.TaskID != nil {
			seen[overdueKey(*n.TaskID, n.UserID)] = true
		}
	}

	created := 0
	for i := range tasks {
		task := tasks[i]

		for _, uid := range task.Stakeholders() {
			pref, ok := prefs[uid]
			if !ok || !pref.AnyChannelEnabled() || !pref.OverdueAlertsEnabled {
				continue
			}
			if inQuietHours(pref, now) {
				continue
			}

			key := overdueKey(task.ID, uid)
			if seen[key] {
				continue
			}

			notif := models.Notification{
				UserID:   uid,
				TaskID:   &task.ID,
				Type:     models.NotifTypeOverdue,
				Title:    "Task overdue",
				Message:  fmt.Sprintf("%q was due %s", task.Title, utils.FormatDueDate(*task.DueDate)),
				Metadata: taskMetadata(task),
			}
			if err := w.createAndDeliver(&notif, pref, []models.Task{task}); err != nil {
				utils.ErrorLogger.Printf("Error creating overdue notification for task %d user %d: %v",
					task.ID, uid, err)
				continue
			}
			seen[key] = true
			created++
		}
		// Due date tidak berubah, jadi tidak ada rescheduling di fase ini.
	}

	return created
}

// processDailySummaries beroperasi di atas preferences, bukan tasks: setiap
// user yang summary-nya aktif dapat paling banyak satu ringkasan per hari
// kalender di timezone-nya sendiri.
func (w *NotificationWorker) processDailySummaries(scope *uint) int {
	now := w.now()

	prefs, err := w.digestCandidates("daily_summary_enabled", scope)
	if err != nil {
		utils.ErrorLogger.Printf("Error querying summary preferences: %v", err)
		return 0
	}
	if len(prefs) == 0 {
		return 0
	}

	seen, err := w.digestDedupSet(models.NotifTypeDailySummary, prefs, now)
	if err != nil {
		utils.ErrorLogger.Printf("Error building summary dedup set: %v", err)
		return 0
	}

	created := 0
	for i := range prefs {
		pref := &prefs[i]
		loc := loadLocation(pref.Timezone)
		local := now.In(loc)

		if local.Hour()*60+local.Minute() < clockMinutes(pref.DailySummaryTime) {
			continue
		}
		if inQuietHours(pref, now) {
			continue
		}
		if seen[digestKey(pref.UserID, now, loc)] {
			continue
		}

		dayStart, dayEnd := localDayWindow(now, loc)

		var dueToday []models.Task
		if err := w.db.
			Where("(owner_id = ? OR assignee_id = ?) AND completed_at IS NULL AND due_date >= ? AND due_date < ?",
				pref.UserID, pref.UserID, dayStart, dayEnd).
			Order("due_date ASC").Find(&dueToday).Error; err != nil {
			utils.ErrorLogger.Printf("Error querying due-today tasks for user %d: %v", pref.UserID, err)
			continue
		}

		overdue, err := w.overdueTasksFor(pref.UserID, dayStart)
		if err != nil {
			utils.ErrorLogger.Printf("Error querying overdue tasks for user %d: %v", pref.UserID, err)
			continue
		}

		if len(dueToday) == 0 && len(overdue) == 0 {
			continue
		}

		metadata, _ := json.Marshal(map[string]interface{}{
			"due_today_count": len(dueToday),
			"overdue_count":   len(overdue),
			"due_today":       taskPreviews(dueToday, 5, dayStart, false),
			"overdue":         taskPreviews(overdue, 5, dayStart, true),
		})

		notif := models.Notification{
			UserID:   pref.UserID,
			Type:     models.NotifTypeDailySummary,
			Title:    "Daily summary",
			Message: fmt.Sprintf("You have %s due today and %s.",
				pluralize(len(dueToday), "task"), pluralize(len(overdue), "overdue task")),
			Metadata: string(metadata),
		}
		if err := w.createAndDeliver(&notif, pref, append(dueToday, overdue...)); err != nil {
			utils.ErrorLogger.Printf("Error creating daily summary for user %d: %v", pref.UserID, err)
			continue
		}
		seen[digestKey(pref.UserID, now, loc)] = true
		created++
	}

	return created
}

// processOverdueDigests -> struktur yang sama dengan daily summary, tapi hanya
// mengagregasi task overdue: urut dari yang due paling lama, sampai 10 preview
// beranotasi hari-terlambat, pesan menyebut 5 judul pertama.
func (w *NotificationWorker) processOverdueDigests(scope *uint) int {
	now := w.now()

	prefs, err := w.digestCandidates("overdue_digest_enabled", scope)
	if err != nil {
		utils.ErrorLogger.Printf("Error querying digest preferences: %v", err)
		return 0
	}
	if len(prefs) == 0 {
		return 0
	}

	seen, err := w.digestDedupSet(models.NotifTypeOverdueDigest, prefs, now)
	if err != nil {
		utils.ErrorLogger.Printf("Error building digest dedup set: %v", err)
		return 0
	}

	created := 0
	for i := range prefs {
		pref := &prefs[i]
		loc := loadLocation(pref.Timezone)
		local := now.In(loc)

		if local.Hour()*60+local.Minute() < clockMinutes(pref.OverdueDigestTime) {
			continue
		}
		if inQuietHours(pref, now) {
			continue
		}
		if seen[digestKey(pref.UserID, now, loc)] {
			continue
		}

		dayStart, _ := localDayWindow(now, loc)

		overdue, err := w.overdueTasksFor(pref.UserID, dayStart)
		if err != nil {
			utils.ErrorLogger.Printf("Error querying overdue tasks for user %d: %v", pref.UserID, err)
			continue
		}
		if len(overdue) == 0 {
			continue
		}

		metadata, _ := json.Marshal(map[string]interface{}{
			"overdue_count": len(overdue),
			"overdue":       taskPreviews(overdue, 10, dayStart, true),
		})

		notif := models.Notification{
			UserID:   pref.UserID,
			Type:     models.NotifTypeOverdueDigest,
			Title:    "Overdue tasks",
			Message:  digestMessage(overdue),
			Metadata: string(metadata),
		}
		if err := w.createAndDeliver(&notif, pref, overdue); err != nil {
			utils.ErrorLogger.Printf("Error creating overdue digest for user %d: %v", pref.UserID, err)
			continue
		}
		seen[digestKey(pref.UserID, now, loc)] = true
		created++
	}

	return created
}

// digestCandidates -> preferences dengan flag digest tertentu aktif dan
// minimal satu channel menyala.
func (w *NotificationWorker) digestCandidates(enabledColumn string, scope *uint) ([]models.NotificationPreference, error) {
	q := w.db.Where(enabledColumn+" = ? AND (in_app_enabled = ? OR push_enabled = ?)", true, true, true)
	if scope != nil {
		q = q.Where("user_id = ?", *scope)
	}
	var prefs []models.NotificationPreference
	err := q.Find(&prefs).Error
	return prefs, err
}

// digestDedupSet membangun set (user, tanggal lokal) dari window riwayat 48 jam
// sekali jalan, bukan query per user. Tanggal pembuatan notifikasi lama
// diterjemahkan ke kalender user masing-masing.
func (w *NotificationWorker) digestDedupSet(notifType string, prefs []models.NotificationPreference, now time.Time) (map[string]bool, error) {
	prefByUser := make(map[uint]*models.NotificationPreference, len(prefs))
	for i := range prefs {
		prefByUser[prefs[i].UserID] = &prefs[i]
	}

	var recent []models.Notification
	if err := w.db.Where("type = ? AND created_at > ?", notifType, now.Add(-48*time.Hour)).
		Find(&recent).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(recent))
	for _, n := range recent {
		pref, ok := prefByUser[n.UserID]
		if !ok {
			continue
		}
		seen[digestKey(n.UserID, n.CreatedAt, loadLocation(pref.Timezone))] = true
	}
	return seen, nil
}

func (w *NotificationWorker) overdueTasksFor(userID uint, dayStart time.Time) ([]models.Task, error) {
	var overdue []models.Task
	err := w.db.
		Where("(owner_id = ? OR assignee_id = ?) AND completed_at IS NULL AND due_date IS NOT NULL AND due_date < ?",
			userID, userID, dayStart).
		Order("due_date ASC").Find(&overdue).Error
	return overdue, err
}

// createAndDeliver menyimpan notifikasi (in-app record) lalu menyerahkan ke
// gateway: event realtime langsung, push di goroutine terpisah supaya
// kegagalan kirim tidak pernah memblokir sweep.
func (w *NotificationWorker) createAndDeliver(n *models.Notification, pref *models.NotificationPreference, tasks []models.Task) error {
	// Dicap dengan clock worker sendiri; dedup digest membaca tanggal ini.
	if n.CreatedAt.IsZero() {
		n.CreatedAt = w.now()
	}
	if err := w.db.Create(n).Error; err != nil {
		return err
	}

	w.gateway.EmitNotification(*n)

	if pref.PushEnabled {
		payload := buildPushPayload(*n, tasks)
		go w.sendPush(n.ID, n.UserID, payload)
	}
	return nil
}

func (w *NotificationWorker) sendPush(notificationID, userID uint, payload PushPayload) {
	defer func() {
		if r := recover(); r != nil {
			utils.ErrorLogger.Printf("Panic sending push to user %d: %v", userID, r)
		}
	}()

	delivered, err := w.gateway.SendPush(userID, payload)
	if err != nil {
		utils.ErrorLogger.Printf("Error sending push to user %d: %v", userID, err)
		if w.Monitor != nil {
			w.Monitor.AddToRetryQueue(notificationID, userID, payload)
		}
		return
	}

	if w.Monitor != nil {
		w.Monitor.RecordAttempt(delivered > 0)
	}
	if delivered > 0 {
		now := time.Now()
		if err := w.db.Model(&models.Notification{}).
			Where("id = ?", notificationID).
			Update("sent_at", now).Error; err != nil {
			utils.ErrorLogger.Printf("Error marking notification %d as sent: %v", notificationID, err)
		}
	}
}

func stakeholderSet(tasks []models.Task) []uint {
	set := make(map[uint]bool)
	ids := make([]uint, 0, len(tasks)*2)
	for _, t := range tasks {
		for _, uid := range t.Stakeholders() {
			if !set[uid] {
				set[uid] = true
				ids = append(ids, uid)
			}
		}
	}
	return ids
}

func reminderKey(taskID, userID uint, at time.Time) string {
	return fmt.Sprintf("%d:%d:%d", taskID, userID, at.Unix())
}

func overdueKey(taskID, userID uint) string {
	return fmt.Sprintf("%d:%d", taskID, userID)
}

func digestKey(userID uint, t time.Time, loc *time.Location) string {
	return fmt.Sprintf("%d:%s", userID, localDateKey(t, loc))
}

type taskPreview struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	DueDate     string `json:"due_date"`
	DaysOverdue int    `json:"days_overdue,omitempty"`
}

func taskPreviews(tasks []models.Task, limit int, dayStart time.Time, withOverdueDays bool) []taskPreview {
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	previews := make([]taskPreview, 0, len(tasks))
	for _, t := range tasks {
		p := taskPreview{
			ID:      t.ID,
			Title:   t.Title,
			DueDate: t.DueDate.UTC().Format("2006-01-02"),
		}
		if withOverdueDays {
			p.DaysOverdue = int(dayStart.Sub(t.DueDate.UTC()).Hours() / 24)
		}
		previews = append(previews, p)
	}
	return previews
}

func taskMetadata(task models.Task) string {
	meta := map[string]interface{}{
		"task_id": task.ID,
		"title":   task.Title,
	}
	if task.DueDate != nil {
		meta["due_date"] = task.DueDate.UTC().Format("2006-01-02")
	}
	if task.ProjectID != nil {
		meta["project_id"] = *task.ProjectID
	}
	data, _ := json.Marshal(meta)
	return string(data)
}

func digestMessage(overdue []models.Task) string {
	titles := make([]string, 0, 5)
	for i, t := range overdue {
		if i == 5 {
			break
		}
		titles = append(titles, t.Title)
	}

	msg := fmt.Sprintf("%s: %s", pluralize(len(overdue), "overdue task"), strings.Join(titles, ", "))
	if rest := len(overdue) - len(titles); rest > 0 {
		msg += fmt.Sprintf(" and %d more", rest)
	}
	return msg
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
