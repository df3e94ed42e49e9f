package schema

import "fmt"

// InvalidError is returned for every install-time descriptor error (§4.1,
// §7 "schema_invalid"). It is fatal: the resource is never registered.
type InvalidError struct {
	Resource string
	Reason   string
}

func (e *InvalidError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("schema_invalid: %s", e.Reason)
	}
	return fmt.Sprintf("schema_invalid: resource %q: %s", e.Resource, e.Reason)
}

func invalid(resource, format string, args ...interface{}) error {
	return &InvalidError{Resource: resource, Reason: fmt.Sprintf(format, args...)}
}
