package domain

import (
	"testing"

	"github.com/Sairishwanth89/medfirst/pkg/auth"
)

func TestStatusTransitions(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusReadyForPickup},
		{StatusConfirmed, StatusCancelled},
		{StatusReadyForPickup, StatusOutForDelivery},
		{StatusOutForDelivery, StatusDelivered},
	}
	for _, tc := range legal {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("%s -> %s should be legal", tc.from, tc.to)
		}
	}

	illegal := []struct{ from, to Status }{
		{StatusPending, StatusReadyForPickup},
		{StatusPending, StatusDelivered},
		{StatusConfirmed, StatusOutForDelivery},
		{StatusReadyForPickup, StatusCancelled},
		{StatusReadyForPickup, StatusDelivered},
		{StatusOutForDelivery, StatusCancelled},
		{StatusDelivered, StatusOutForDelivery},
		{StatusCancelled, StatusPending},
		{StatusCancelled, StatusConfirmed},
		{StatusConfirmed, StatusConfirmed},
	}
	for _, tc := range illegal {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("%s -> %s should be illegal", tc.from, tc.to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusReadyForPickup,
		StatusOutForDelivery, StatusDelivered, StatusCancelled}
	for _, terminal := range []Status{StatusDelivered, StatusCancelled} {
		if !terminal.Terminal() {
			t.Fatalf("%s should be terminal", terminal)
		}
		for _, to := range all {
			if terminal.CanTransitionTo(to) {
				t.Errorf("terminal %s allows exit to %s", terminal, to)
			}
		}
	}
}

func TestRoleMayTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		role     auth.Role
		want     bool
	}{
		{StatusPending, StatusConfirmed, auth.RolePharmacy, true},
		{StatusPending, StatusConfirmed, auth.RolePatient, false},
		{StatusPending, StatusConfirmed, auth.RoleCourier, false},
		{StatusPending, StatusCancelled, auth.RolePatient, true},
		{StatusPending, StatusCancelled, auth.RolePharmacy, true},
		{StatusPending, StatusCancelled, auth.RoleCourier, false},
		{StatusConfirmed, StatusCancelled, auth.RolePatient, true},
		{StatusReadyForPickup, StatusOutForDelivery, auth.RoleCourier, true},
		{StatusReadyForPickup, StatusOutForDelivery, auth.RolePatient, false},
		{StatusOutForDelivery, StatusDelivered, auth.RoleCourier, true},
		{StatusOutForDelivery, StatusDelivered, auth.RolePharmacy, false},
		// Only the worker drives this edge, no API role qualifies.
		{StatusConfirmed, StatusReadyForPickup, auth.RolePharmacy, false},
		{StatusConfirmed, StatusReadyForPickup, auth.RoleCourier, false},
	}
	for _, tc := range cases {
		if got := RoleMayTransition(tc.from, tc.to, tc.role); got != tc.want {
			t.Errorf("RoleMayTransition(%s, %s, %s) = %v, want %v", tc.from, tc.to, tc.role, got, tc.want)
		}
	}
}

func TestNewOrderTotals(t *testing.T) {
	o := NewOrder("o1", "u1", "ph1", "12 Main St", []Item{
		{ProductID: "p1", Quantity: 2, UnitPriceCents: 250},
		{ProductID: "p2", Quantity: 1, UnitPriceCents: 1000},
	})
	if o.Status != StatusPending {
		t.Fatalf("new order status = %s, want pending", o.Status)
	}
	if o.Items[0].SubtotalCents != 500 || o.Items[1].SubtotalCents != 1000 {
		t.Fatalf("subtotals = %d, %d", o.Items[0].SubtotalCents, o.Items[1].SubtotalCents)
	}
	if o.TotalCents != 1500 {
		t.Fatalf("total = %d, want 1500", o.TotalCents)
	}
}
