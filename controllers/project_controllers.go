package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/taskhive/taskhive-app/models"
	"github.com/taskhive/taskhive-app/realtime"
	"github.com/taskhive/taskhive-app/utils"
	"gorm.io/gorm"
)

type ProjectController struct {
	DB *gorm.DB
}

func NewProjectController(db *gorm.DB) *ProjectController {
	return &ProjectController{DB: db}
}

// GetAllProjects -> semua project milik user
func (pc *ProjectController) GetAllProjects(c *gin.Context) {
	var projects []models.Project
	if err := pc.DB.Where("owner_id = ?", currentUserID(c)).Find(&projects).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All projects", projects)
}

// CreateProject
func (pc *ProjectController) CreateProject(c *gin.Context) {
	type reqBody struct {
		Name  string `json:"name" binding:"required"`
		Color string `json:"color"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	project := models.Project{
		Name:    body.Name,
		Color:   body.Color,
		OwnerID: currentUserID(c),
	}
	if err := pc.DB.Create(&project).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastProjectUpdate(project)
	utils.RespondJSON(c, http.StatusCreated, "Project created", project)
}

// UpdateProject
func (pc *ProjectController) UpdateProject(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("project_id"))

	var project models.Project
	if err := pc.DB.Where("id = ? AND owner_id = ?", id, currentUserID(c)).First(&project).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	type reqBody struct {
		Name  *string `json:"name"`
		Color *string `json:"color"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if body.Name != nil {
		project.Name = *body.Name
	}
	if body.Color != nil {
		project.Color = *body.Color
	}

	if err := pc.DB.Save(&project).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	realtime.BroadcastProjectUpdate(project)
	utils.RespondJSON(c, http.StatusOK, "Project updated", project)
}

// DeleteProject
func (pc *ProjectController) DeleteProject(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("project_id"))

	res := pc.DB.Where("id = ? AND owner_id = ?", id, currentUserID(c)).Delete(&models.Project{})
	if res.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, gorm.ErrRecordNotFound)
		return
	}

	realtime.BroadcastProjectDelete(uint(id))
	utils.RespondJSON(c, http.StatusOK, "Project deleted", gin.H{"project_id": id})
}
