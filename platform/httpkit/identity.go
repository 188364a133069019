// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// Role names carried in access tokens.
const (
	RoleStaff      = "staff"
	RoleSupervisor = "supervisor"
	RoleClient     = "client"
)

// Identity represents the authenticated actor.
// Handlers read it instead of poking at gin context keys.
type Identity interface {
	// ActorID returns the authenticated actor's ID.
	ActorID() int64
	// Roles returns the actor's assigned roles.
	Roles() []string
	// HasRole checks if the actor has a specific role.
	HasRole(role string) bool
	// IsStaff reports whether the actor acts on behalf of the operator.
	IsStaff() bool
	// IsPrivileged reports whether the actor may perform supervisor-only actions.
	IsPrivileged() bool
	// IsAuthenticated returns true if the actor is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	actorID       int64
	roles         []string
	authenticated bool
}

func (i *identity) ActorID() int64 { return i.actorID }

func (i *identity) Roles() []string { return i.roles }

func (i *identity) HasRole(role string) bool { return slices.Contains(i.roles, role) }

func (i *identity) IsStaff() bool { return i.HasRole(RoleStaff) || i.HasRole(RoleSupervisor) }

func (i *identity) IsPrivileged() bool { return i.HasRole(RoleSupervisor) }

func (i *identity) IsAuthenticated() bool { return i.authenticated }

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if actor info is not present.
func GetIdentity(c *gin.Context) Identity {
	raw, ok := c.Get(ContextActorIDKey)
	if !ok {
		return &identity{}
	}

	actorID, ok := raw.(int64)
	if !ok {
		return &identity{}
	}

	var roleList []string
	if roles, ok := c.Get(ContextRolesKey); ok {
		roleList, _ = roles.([]string)
	}

	return &identity{
		actorID:       actorID,
		roles:         roleList,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the actor is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
