package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/e-course-backend/utils"
)

// bearerToken lấy token từ "Authorization: Bearer <token>" hoặc X-Auth-Token (cho iOS).
func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.GetHeader("X-Auth-Token"); token != "" {
			return token, ""
		}
		return "", "Thiếu Authorization header"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "Authorization header không hợp lệ"
	}
	return parts[1], ""
}

// authenticate kiểm tra token và lưu claims vào context, không gọi c.Next().
func authenticate(c *gin.Context) bool {
	tokenString, problem := bearerToken(c)
	if problem != "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": problem})
		return false
	}

	claims, err := utils.VerifyToken(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token không hợp lệ hoặc hết hạn"})
		return false
	}

	// Lưu thông tin vào context để controller dùng
	c.Set("user_id", claims.UserID)
	c.Set("role", claims.Role)
	return true
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c) {
			c.Next()
		}
	}
}
