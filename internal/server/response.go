package server

import "github.com/gin-gonic/gin"

// respondError writes the uniform failure envelope. Every terminal failure in
// handlers and middleware goes through here.
func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// respondOK writes a success envelope, merging extra fields into it.
func respondOK(c *gin.Context, status int, extra gin.H) {
	body := gin.H{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}
