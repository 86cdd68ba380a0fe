package routes

import (
	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
)

func SetupRouter() *gin.Engine {
	r := gin.New()

	// Recovery and request logging sit under every route group.
	r.Use(gin.Recovery())
	r.Use(ginlog.SetLogger())

	AdminRoutes(r)
	DriverRoutes(r)
	ParentRoutes(r)
	WebSocketRoutes(r)

	return r
}
