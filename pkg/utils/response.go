package utils

import (
	"github.com/gin-gonic/gin"
)

// ErrorResponse writes the device-protocol error body. The shape
// {"error": "..."} is part of the firmware compatibility contract.
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
