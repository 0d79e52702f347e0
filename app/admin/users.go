package admin

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/store"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func UserList(c *gin.Context, d *internal.Deps) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	var total int64
	if err := d.DB.Model(&model.User{}).Count(&total).Error; err != nil {
		internal.ServerError(c, "Failed to count users", err)
		return
	}

	users := []model.User{}

	err = d.DB.
		Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).
		Error
	if err != nil {
		internal.ServerError(c, "Failed to list users", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"page":  page,
		"limit": limit,
		"total": total,
	})
}

type roleBody struct {
	Role model.Role `json:"role"`
}

func UserRole(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data roleBody
	if err := c.ShouldBindJSON(&data); err != nil || !data.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid role",
			"requestID": requestID,
		})
		return
	}

	user := store.GetUserByID(d.DB, c.Param("id"))
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "User not found",
			"requestID": requestID,
		})
		return
	}

	if err := d.DB.Model(&model.User{}).Where("id = ?", user.ID).Update("role", data.Role).Error; err != nil {
		internal.ServerError(c, "Failed to update role", err)
		return
	}

	d.Users.Forget(user.ID)

	c.JSON(http.StatusOK, gin.H{
		"success": "Role updated!",
	})
}
