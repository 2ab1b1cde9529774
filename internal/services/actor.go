package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/makershopapp/makershop/internal/models"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleCreator  Role = "creator"
	RoleAdmin    Role = "admin"
)

func ParseRole(value string) (Role, error) {
	switch role := Role(value); role {
	case RoleCustomer, RoleCreator, RoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("%w: %q is not a role", models.ErrValidation, value)
	}
}

// Actor is the authenticated principal behind a request.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// actsAsCustomer reports whether the actor may perform customer-side
// operations on the order.
func actsAsCustomer(actor Actor, order *models.Order) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.Role == RoleCustomer && actor.ID == order.CustomerID
}

// actsAsCreator reports whether the actor may perform seller-side operations
// on the order.
func actsAsCreator(actor Actor, order *models.Order) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.Role == RoleCreator && actor.ID == order.CreatorID
}

func canViewOrder(actor Actor, order *models.Order) bool {
	return actsAsCustomer(actor, order) || actsAsCreator(actor, order)
}
