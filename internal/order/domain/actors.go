package domain

import "github.com/Sairishwanth89/medfirst/pkg/auth"

// edge identifies one arrow of the lifecycle graph.
type edge struct {
	from Status
	to   Status
}

// edgeActors lists which roles may drive each transition through the
// API. confirmed -> ready_for_pickup is absent: only the fulfillment
// worker moves that edge, and it does not go through the HTTP surface.
var edgeActors = map[edge][]auth.Role{
	{StatusPending, StatusConfirmed}:             {auth.RolePharmacy},
	{StatusPending, StatusCancelled}:             {auth.RolePharmacy, auth.RolePatient},
	{StatusConfirmed, StatusCancelled}:           {auth.RolePharmacy, auth.RolePatient},
	{StatusReadyForPickup, StatusOutForDelivery}: {auth.RoleCourier},
	{StatusOutForDelivery, StatusDelivered}:      {auth.RoleCourier},
}

// RoleMayTransition reports whether the role is authorized for the
// edge. It assumes the edge itself is legal.
func RoleMayTransition(from, to Status, role auth.Role) bool {
	for _, r := range edgeActors[edge{from, to}] {
		if r == role {
			return true
		}
	}
	return false
}
