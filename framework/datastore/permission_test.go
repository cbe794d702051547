package datastore

import "testing"

func TestKeyFromString(t *testing.T) {
	cases := []struct {
		in   string
		want PermissionKey
	}{
		{"#-#", Controller},
		{"*-*", Everyone},
		{"survival-abc123", PermissionKey{Name: "survival", Identifier: "abc123"}},
		{"survival", PermissionKey{Name: "survival"}},
	}
	for _, c := range cases {
		if got := KeyFromString(c.in); got != c.want {
			t.Errorf("KeyFromString(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestKeyStringRoundTrip(t *testing.T) {
	for _, s := range []string{"#-#", "*-*", "survival-abc123", "survival"} {
		if got := KeyFromString(s).String(); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}

func TestKeyFormat(t *testing.T) {
	valid := []PermissionKey{
		Controller,
		Everyone,
		{Name: "survival", Identifier: "abc123"},
		{Name: "survival"},
		{Name: "a"},
	}
	for _, k := range valid {
		if !k.IsFormattedCorrectly() {
			t.Errorf("%v should be well formed", k)
		}
	}
	invalid := []PermissionKey{
		{},
		{Name: "has space", Identifier: "abc123"},
		{Name: "survival", Identifier: "short"},
		{Name: "survival", Identifier: "toolong1"},
		{Name: "thisnameiswaytoolongtobeacceptedbythevalidator"},
		{Name: "#", Identifier: "abc123"},
	}
	for _, k := range invalid {
		if k.IsFormattedCorrectly() {
			t.Errorf("%v should be rejected", k)
		}
	}
}

func TestCheckAccess(t *testing.T) {
	a := PermissionKey{Name: "survival", Identifier: "abc123"}
	b := PermissionKey{Name: "survival", Identifier: "def456"}
	nameKey := PermissionKey{Name: "survival"}

	if !Everyone.CheckAccess(a) {
		t.Error("everyone-owned capability must admit any key")
	}
	if !Controller.CheckAccess(Controller) {
		t.Error("controller matches itself")
	}
	if Controller.CheckAccess(a) {
		t.Error("individual key must not match the controller capability")
	}
	if !a.CheckAccess(a) {
		t.Error("exact match must pass")
	}
	if a.CheckAccess(b) {
		t.Error("different identifiers must not match")
	}
	if !nameKey.CheckAccess(nameKey) {
		t.Error("name key matches itself")
	}
	if nameKey.CheckAccess(a) {
		t.Error("full key does not satisfy a name-only capability")
	}
}

func TestAccessDefaults(t *testing.T) {
	owner := PermissionKey{Name: "survival", Identifier: "abc123"}
	stranger := PermissionKey{Name: "lobby", Identifier: "xyz789"}

	if !HasReadAccess(stranger, owner) {
		t.Error("reads default to allowed")
	}
	if HasWriteAccess(stranger, owner) {
		t.Error("writes never inherit the read default")
	}
	if !HasWriteAccess(Controller, owner) {
		t.Error("controller writes everywhere")
	}
	if !HasWriteAccess(owner, owner) {
		t.Error("owner writes its own object")
	}
}
