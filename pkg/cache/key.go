package cache

import (
	"fmt"
	"strings"
)

// Key identifies a cached attribute.
type Key struct {
	// Resource is the attribute name (e.g. "age")
	Resource string

	// PersonID is the identifier the attribute belongs to
	PersonID int64
}

// AttributeKey returns the key of the age attribute for a person.
func AttributeKey(personID int64) Key {
	return Key{Resource: "age", PersonID: personID}
}

// String generates the Redis key.
// Format: enrich:people:<id>:<resource>
//
// Example:
//
//	enrich:people:42:age
func (k Key) String() string {
	resource := strings.Trim(k.Resource, "/")
	if resource == "" {
		resource = "age"
	}
	return fmt.Sprintf("enrich:people:%d:%s", k.PersonID, resource)
}
