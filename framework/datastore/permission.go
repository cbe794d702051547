package datastore

import (
	"strings"
)

// PermissionKey identifies the caller class for data access decisions. The
// wire form is "name-identifier": an alphanumeric name of at most 32
// characters plus a 6 character alphanumeric identifier. A bare "name" key
// matches every identifier under that name. "#-#" is the controller key and
// "*-*" matches everyone.
type PermissionKey struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier,omitempty"`
}

var (
	Controller = PermissionKey{Name: "#", Identifier: "#"}
	Everyone   = PermissionKey{Name: "*", Identifier: "*"}
)

func KeyFromString(permissionKey string) PermissionKey {
	switch permissionKey {
	case "#-#":
		return Controller
	case "*-*":
		return Everyone
	}
	if name, id, ok := strings.Cut(permissionKey, "-"); ok {
		return PermissionKey{Name: name, Identifier: id}
	}
	return PermissionKey{Name: permissionKey}
}

func (k PermissionKey) String() string {
	if k.Identifier != "" {
		return k.Name + "-" + k.Identifier
	}
	return k.Name
}

func (k PermissionKey) IsController() bool {
	return k == Controller
}

func (k PermissionKey) IsEveryone() bool {
	return k == Everyone
}

func (k PermissionKey) IsNameKey() bool {
	return k.IsFormattedCorrectly() && k.Identifier == ""
}

func (k PermissionKey) IsFormattedCorrectly() bool {
	if k == Controller || k == Everyone {
		return true
	}
	if k.Name == "" || len(k.Name) > 32 {
		return false
	}
	if !alphanumeric(k.Name) {
		return false
	}
	if k.Identifier == "" {
		return true
	}
	return len(k.Identifier) == 6 && alphanumeric(k.Identifier)
}

func alphanumeric(s string) bool {
	for _, c := range s {
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

// CheckAccess reports whether key may use the capability owned by k.
func (k PermissionKey) CheckAccess(key PermissionKey) bool {
	if k.IsEveryone() {
		return true
	}
	if k.IsController() && key.IsController() {
		return true
	}
	if k.IsNameKey() && key.IsNameKey() && k.Name == key.Name {
		return true
	}
	return k.IsFormattedCorrectly() && key.IsFormattedCorrectly() && k.String() == key.String()
}

// Read access defaults to allow, write access never does: an unrelated key
// may read an object it does not own but can never write it.
const (
	readDefaultAllow  = true
	writeDefaultAllow = false
)

func HasReadAccess(requester, owner PermissionKey) bool {
	return hasAccess(requester, owner, readDefaultAllow)
}

func HasWriteAccess(requester, owner PermissionKey) bool {
	return hasAccess(requester, owner, writeDefaultAllow)
}

func hasAccess(requester, owner PermissionKey, defaultAllow bool) bool {
	if requester.IsController() {
		return true
	}
	if owner.CheckAccess(requester) {
		return true
	}
	return defaultAllow
}
