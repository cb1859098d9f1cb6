package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RolePatient, true},
		{RolePractitioner, true},
		{RoleHospital, true},
		{RoleAdmin, true},
		{"", false},
		{"doctor", false},
		{"Patient", false},
	}
	for _, tt := range tests {
		if got := tt.role.IsValid(); got != tt.want {
			t.Errorf("Role(%q).IsValid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestUser_ToSafeProfile_OmitsPasswordHash(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	u := &User{
		ID:           "u-1",
		Role:         RolePatient,
		Name:         "Asha",
		Email:        "asha@x.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Phone:        "9999999999",
		CreatedAt:    created,
	}

	p := u.ToSafeProfile()
	if p.ID != "u-1" || p.Name != "Asha" || p.Email != "asha@x.com" || p.Role != RolePatient {
		t.Errorf("ToSafeProfile() = %+v", p)
	}
	if p.CreatedAt == nil || !p.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", p.CreatedAt, created)
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "$2a$") || strings.Contains(string(data), "password") {
		t.Errorf("safe profile leaks the password hash: %s", data)
	}
}

func TestUser_ToSafeProfile_DefaultsAndZeroTime(t *testing.T) {
	p := (&User{ID: "u-2", Role: RolePractitioner}).ToSafeProfile()

	if p.Name != "User" {
		t.Errorf("Name = %q, want %q", p.Name, "User")
	}
	if p.CreatedAt != nil {
		t.Errorf("CreatedAt = %v, want nil for zero time", p.CreatedAt)
	}

	data, _ := json.Marshal(p)
	if strings.Contains(string(data), "createdAt") {
		t.Errorf("createdAt should be omitted: %s", data)
	}
}

func TestAddress_IsZero(t *testing.T) {
	if !(Address{}).IsZero() {
		t.Error("empty address should be zero")
	}
	if (Address{City: "Pune"}).IsZero() {
		t.Error("address with city should not be zero")
	}
}
