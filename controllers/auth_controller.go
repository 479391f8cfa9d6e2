package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/vnkhanh/e-course-backend/utils"
)

const RoleAdmin = "admin"

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler đăng nhập tài khoản quản trị cấu hình qua ADMIN_EMAIL và
// ADMIN_PASSWORD_HASH (bcrypt).
type AuthHandler struct {
	adminEmail   string
	passwordHash []byte
}

func NewAuthHandler(adminEmail, passwordHash string) *AuthHandler {
	return &AuthHandler{
		adminEmail:   strings.ToLower(strings.TrimSpace(adminEmail)),
		passwordHash: []byte(passwordHash),
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if h.adminEmail == "" || email != h.adminEmail {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Email hoặc mật khẩu không đúng"})
		return
	}
	if err := bcrypt.CompareHashAndPassword(h.passwordHash, []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Email hoặc mật khẩu không đúng"})
		return
	}

	token, err := utils.GenerateToken(email, RoleAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Đăng nhập thành công",
		"token":   token,
		"user": gin.H{
			"email": email,
			"role":  RoleAdmin,
		},
	})
}
