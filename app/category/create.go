package category

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/pkg/util"
	"bitwise74/storefront-api/pkg/validators"
	"net/http"

	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

type createBody struct {
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	ParentID *string `json:"parentId"`
	Position int     `json:"position"`
}

func CategoryCreate(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data createBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed or invalid JSON request body",
			"requestID": requestID,
		})
		return
	}

	if err := validators.NameValidator(data.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	slug := data.Slug
	if slug == "" {
		slug = data.Name
	}

	slug = util.Slugify(slug)
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid slug",
			"requestID": requestID,
		})
		return
	}

	if data.ParentID != nil && *data.ParentID == "" {
		data.ParentID = nil
	}

	if data.ParentID != nil {
		exists, err := categoryExists(d.DB, "id = ?", *data.ParentID)
		if err != nil {
			internal.ServerError(c, "Failed to check parent category", err)
			return
		}

		if !exists {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Parent category not found",
				"requestID": requestID,
			})
			return
		}
	}

	taken, err := categoryExists(d.DB, "slug = ?", slug)
	if err != nil {
		internal.ServerError(c, "Failed to check slug", err)
		return
	}

	if taken {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Slug already in use!",
			"requestID": requestID,
		})
		return
	}

	id, err := gonanoid.New(16)
	if err != nil {
		internal.ServerError(c, "Failed to generate category ID", err)
		return
	}

	category := &model.Category{
		ID:       id,
		Name:     data.Name,
		Slug:     slug,
		ParentID: data.ParentID,
		Position: data.Position,
	}

	if err := d.DB.Create(category).Error; err != nil {
		internal.ServerError(c, "Failed to create category", err)
		return
	}

	invalidate(d)

	c.JSON(http.StatusCreated, gin.H{
		"category": category,
	})
}

func categoryExists(db *gorm.DB, query string, args ...any) (bool, error) {
	var count int64

	err := db.Model(&model.Category{}).Where(query, args...).Count(&count).Error
	return count > 0, err
}
