package router

import "github.com/gin-gonic/gin"

// Module is a self-contained route bundle (the account routes are one).
// Register mounts the module's routes onto the shared API group.
type Module interface {
	Register(rg *gin.RouterGroup)
}
