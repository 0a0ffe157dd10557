package api

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

var phoneRe = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

type loginRequest struct {
	Phone string `json:"phone" binding:"required"`
	Name  string `json:"name"`
}

// Login handles POST /api/login: phone-number login with lazy user
// creation. There is no password; the phone number is the whole identity.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !phoneRe.MatchString(req.Phone) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid phone number"})
		return
	}

	user, err := h.store.GetOrCreateUser(c.Request.Context(), req.Phone, req.Name)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
