package kilncat

import "fmt"

// Authorize decides whether a principal may act on a resource owned by
// ownerID. Owners and admins pass; everyone else gets ErrForbidden.
// Pure function, no I/O.
func Authorize(p Principal, ownerID string) error {
	if p.IsAdmin {
		return nil
	}
	if p.SubjectID != "" && p.SubjectID == ownerID {
		return nil
	}
	return fmt.Errorf("principal %s does not own resource: %w", p.SubjectID, ErrForbidden)
}

// AuthorizeHidden is the existence-hiding variant used by every read and
// mutation path: resources outside a non-admin caller's ownership are
// reported as ErrNotFound so that denial does not leak existence. Admins
// never trip it.
func AuthorizeHidden(p Principal, ownerID string) error {
	if err := Authorize(p, ownerID); err != nil {
		return fmt.Errorf("resource hidden from principal %s: %w", p.SubjectID, ErrNotFound)
	}
	return nil
}
