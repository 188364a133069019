// Package http holds the pieces shared between the router and the modules
// that mount routes on it.
package http

import "github.com/gin-gonic/gin"

// Module is a bounded context with HTTP routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups a module may mount on.
type RouterContext struct {
	// V1 is /api/v1, rate limited but open.
	V1 *gin.RouterGroup
	// Protected is /api/v1 behind bearer token authentication. Role checks
	// are left to the module.
	Protected *gin.RouterGroup
}
