package domain

import "testing"

func TestIsAllowedFollowsRouteTable(t *testing.T) {
	cases := []struct {
		name    string
		role    string
		allowed []string
		want    bool
	}{
		{"cashier on pos", RoleCashier, AllRoles, true},
		{"cashier on products", RoleCashier, ManagerRoles, false},
		{"manager on products", RoleManager, ManagerRoles, true},
		{"manager on settings", RoleManager, AdminRoles, false},
		{"admin on settings", RoleAdmin, AdminRoles, true},
		{"empty role", "", AllRoles, false},
		{"unknown role", "owner", AllRoles, false},
		{"any authenticated", RoleCashier, nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAllowed(tc.role, tc.allowed); got != tc.want {
				t.Fatalf("IsAllowed(%q, %v) = %v, want %v", tc.role, tc.allowed, got, tc.want)
			}
		})
	}
}

func TestIsValidPaymentMethod(t *testing.T) {
	for _, method := range []string{PaymentCash, PaymentCard, PaymentCredit} {
		if !IsValidPaymentMethod(method) {
			t.Fatalf("expected %q to be valid", method)
		}
	}
	if IsValidPaymentMethod("qris") {
		t.Fatal("expected unknown payment method to be rejected")
	}
}
