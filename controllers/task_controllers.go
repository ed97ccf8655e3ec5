package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/realtime"
	"github.com/taskhive/taskhive-app/services"
	"github.com/taskhive/taskhive-app/utils"
	"gorm.io/gorm"
)

type TaskController struct {
	DB        *gorm.DB
	Scheduler *services.ReminderScheduler
}

func NewTaskController(db *gorm.DB) *TaskController {
	return &TaskController{
		DB:        db,
		Scheduler: services.NewReminderScheduler(db),
	}
}

// GetAllTasks -> task di mana user jadi owner atau assignee, dengan filter
// opsional project_id / assignee_id / completed / window due date
func (tc *TaskController) GetAllTasks(c *gin.Context) {
	userID := currentUserID(c)

	q := tc.DB.Where("owner_id = ? OR assignee_id = ?", userID, userID)
	if projectID := c.Query("project_id"); projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	if assigneeID := c.Query("assignee_id"); assigneeID != "" {
		q = q.Where("assignee_id = ?", assigneeID)
	}
	if completed := c.Query("completed"); completed == "true" {
		q = q.Where("completed_at IS NOT NULL")
	} else if completed == "false" {
		q = q.Where("completed_at IS NULL")
	}
	if after := c.Query("due_after"); after != "" {
		from, err := utils.ParseDueDate(after)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("due_after must be YYYY-MM-DD"))
			return
		}
		q = q.Where("due_date >= ?", from)
	}
	if before := c.Query("due_before"); before != "" {
		until, err := utils.ParseDueDate(before)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("due_before must be YYYY-MM-DD"))
			return
		}
		q = q.Where("due_date < ?", until)
	}

	var tasks []models.Task
	if err := q.Order("due_date ASC").Find(&tasks).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All tasks", tasks)
}

// GetTaskByID
func (tc *TaskController) GetTaskByID(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("task_id"))

	var task models.Task
	if err := tc.visibleTasks(c).Preload("Project").First(&task, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Task detail", task)
}

// CreateTask -> due_date format "YYYY-MM-DD" (date-only, disimpan midnight UTC).
// Setelah dibuat, scheduler menghitung reminder pertamanya.
func (tc *TaskController) CreateTask(c *gin.Context) {
	type reqBody struct {
		Title       string  `json:"title" binding:"required"`
		Description string  `json:"description"`
		ProjectID   *uint   `json:"project_id"`
		AssigneeID  *uint   `json:"assignee_id"`
		DueDate     *string `json:"due_date"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	task := models.Task{
		Title:       body.Title,
		Description: body.Description,
		ProjectID:   body.ProjectID,
		AssigneeID:  body.AssigneeID,
		OwnerID:     currentUserID(c),
	}

	if body.DueDate != nil && *body.DueDate != "" {
		due, err := utils.ParseDueDate(*body.DueDate)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("due_date must be YYYY-MM-DD"))
			return
		}
		task.DueDate = &due
	}

	if err := tc.DB.Create(&task).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if err := tc.Scheduler.ScheduleNextReminder(task.ID); err != nil {
		utils.ErrorLogger.Printf("Error scheduling reminder for task %d: %v", task.ID, err)
	}
	tc.DB.First(&task, task.ID)

	realtime.BroadcastTaskUpdate(task)
	utils.RespondJSON(c, http.StatusCreated, "Task created", task)
}

// UpdateTask -> perubahan due date mereset reminder pending dan memulai ulang
// siklus scheduling-nya
func (tc *TaskController) UpdateTask(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("task_id"))

	var task models.Task
	if err := tc.visibleTasks(c).First(&task, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	type reqBody struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		ProjectID   *uint   `json:"project_id"`
		AssigneeID  *uint   `json:"assignee_id"`
		DueDate     *string `json:"due_date"` // "" menghapus due date
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if body.Title != nil {
		task.Title = *body.Title
	}
	if body.Description != nil {
		task.Description = *body.Description
	}
	if body.ProjectID != nil {
		task.ProjectID = body.ProjectID
	}
	if body.AssigneeID != nil {
		task.AssigneeID = body.AssigneeID
	}

	dueChanged := false
	if body.DueDate != nil {
		dueChanged = true
		if *body.DueDate == "" {
			task.DueDate = nil
		} else {
			due, err := utils.ParseDueDate(*body.DueDate)
			if err != nil {
				utils.RespondError(c, http.StatusBadRequest, errors.New("due_date must be YYYY-MM-DD"))
				return
			}
			task.DueDate = &due
		}
		// Siklus reminder dimulai ulang untuk due date baru
		task.ReminderAt = nil
	}

	if err := tc.DB.Save(&task).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if dueChanged {
		if err := tc.Scheduler.ScheduleNextReminder(task.ID); err != nil {
			utils.ErrorLogger.Printf("Error scheduling reminder for task %d: %v", task.ID, err)
		}
		tc.DB.First(&task, task.ID)
	}

	realtime.BroadcastTaskUpdate(task)
	utils.RespondJSON(c, http.StatusOK, "Task updated", task)
}

// CompleteTask -> set completed_at dan batalkan reminder pending
func (tc *TaskController) CompleteTask(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("task_id"))

	var task models.Task
	if err := tc.visibleTasks(c).First(&task, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	now := time.Now()
	task.CompletedAt = &now
	task.ReminderAt = nil
	if err := tc.DB.Save(&task).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastTaskUpdate(task)
	utils.RespondJSON(c, http.StatusOK, "Task completed", task)
}

// ReopenTask -> buka kembali task yang sudah selesai; reminder dihitung ulang
func (tc *TaskController) ReopenTask(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("task_id"))

	var task models.Task
	if err := tc.visibleTasks(c).First(&task, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	task.CompletedAt = nil
	if err := tc.DB.Save(&task).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if err := tc.Scheduler.ScheduleNextReminder(task.ID); err != nil {
		utils.ErrorLogger.Printf("Error scheduling reminder for task %d: %v", task.ID, err)
	}
	tc.DB.First(&task, task.ID)

	realtime.BroadcastTaskUpdate(task)
	utils.RespondJSON(c, http.StatusOK, "Task reopened", task)
}

// SnoozeReminder -> quick action "snooze 1 day" dari push notification:
// reminder digeser 24 jam dari sekarang
func (tc *TaskController) SnoozeReminder(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("task_id"))

	var task models.Task
	if err := tc.visibleTasks(c).First(&task, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	snoozed := time.Now().Add(24 * time.Hour)
	if err := tc.DB.Model(&models.Task{}).
		Where("id = ?", task.ID).
		Update("reminder_at", snoozed).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	task.ReminderAt = &snoozed
	realtime.BroadcastTaskUpdate(task)
	utils.RespondJSON(c, http.StatusOK, "Reminder snoozed", task)
}

// DeleteTask
func (tc *TaskController) DeleteTask(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("task_id"))

	res := tc.DB.Where("id = ? AND owner_id = ?", id, currentUserID(c)).Delete(&models.Task{})
	if res.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, gorm.ErrRecordNotFound)
		return
	}

	realtime.BroadcastTaskDelete(uint(id))
	utils.RespondJSON(c, http.StatusOK, "Task deleted", gin.H{"task_id": id})
}

// visibleTasks -> task yang boleh diakses user (owner atau assignee)
func (tc *TaskController) visibleTasks(c *gin.Context) *gorm.DB {
	userID := currentUserID(c)
	return tc.DB.Where("owner_id = ? OR assignee_id = ?", userID, userID)
}
