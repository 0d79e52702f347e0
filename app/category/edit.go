package category

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/pkg/util"
	"bitwise74/storefront-api/pkg/validators"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// An empty parentId moves the category to the root
type editBody struct {
	Name     *string `json:"name"`
	Slug     *string `json:"slug"`
	ParentID *string `json:"parentId"`
	Position *int    `json:"position"`
}

func CategoryEdit(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	id := c.Param("id")

	var data editBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed or invalid JSON request body",
			"requestID": requestID,
		})
		return
	}

	if data.Name == nil && data.Slug == nil && data.ParentID == nil && data.Position == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No edit options provided",
			"requestID": requestID,
		})
		return
	}

	all, err := loadAll(d.DB)
	if err != nil {
		internal.ServerError(c, "Failed to fetch categories", err)
		return
	}

	var category *model.Category
	for i := range all {
		if all[i].ID == id {
			category = &all[i]
			break
		}
	}

	if category == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Category not found",
			"requestID": requestID,
		})
		return
	}

	updates := map[string]any{}

	if data.Name != nil {
		if err := validators.NameValidator(*data.Name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}

		updates["name"] = *data.Name
	}

	if data.Slug != nil {
		slug := util.Slugify(*data.Slug)
		if slug == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Invalid slug",
				"requestID": requestID,
			})
			return
		}

		if slug != category.Slug {
			taken, err := categoryExists(d.DB, "slug = ? AND id <> ?", slug, id)
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
		}

		updates["slug"] = slug
	}

	if data.ParentID != nil {
		parent := *data.ParentID

		switch {
		case parent == "":
			updates["parent_id"] = nil
		case !containsID(all, parent):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Parent category not found",
				"requestID": requestID,
			})
			return
		case service.IsSelfOrDescendant(all, id, parent):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "A category can't be moved below itself",
				"requestID": requestID,
			})
			return
		default:
			updates["parent_id"] = parent
		}
	}

	if data.Position != nil {
		updates["position"] = *data.Position
	}

	if err := d.DB.Model(&model.Category{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		internal.ServerError(c, "Failed to update category", err)
		return
	}

	var updated model.Category
	if err := d.DB.First(&updated, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Category not found",
				"requestID": requestID,
			})
			return
		}

		internal.ServerError(c, "Failed to reload category", err)
		return
	}

	invalidate(d)

	c.JSON(http.StatusOK, gin.H{
		"category": updated,
	})
}

func containsID(all []model.Category, id string) bool {
	for _, c := range all {
		if c.ID == id {
			return true
		}
	}

	return false
}
