package model

// Visibility is the outcome of an access check on a story
type Visibility string

const (
	VisibilityPublic        Visibility = "PUBLIC"
	VisibilityPrivateWriter Visibility = "PRIVATE_WRITER"
	// VisibilityShared grants read access through the print link of a shareable story
	VisibilityShared        Visibility = "SHARED"
	VisibilityPrivateDenied Visibility = "PRIVATE_DENIED"
)

// Allowed reports whether the viewer may read the story
func (v Visibility) Allowed() bool {
	return v != VisibilityPrivateDenied && v != ""
}

// ViewKind selects which access rule applies
type ViewKind string

const (
	// ViewDetail is the regular story page; it ignores Shareable
	ViewDetail ViewKind = "detail"
	// ViewPrint is the printable page reachable through the share link
	ViewPrint ViewKind = "print"
)

// ResolveVisibility decides access for a viewer. isWriter must be false for
// anonymous viewers.
func ResolveVisibility(story *Story, isWriter bool, view ViewKind) Visibility {
	switch {
	case story.Public:
		return VisibilityPublic
	case isWriter:
		return VisibilityPrivateWriter
	case view == ViewPrint && story.Shareable:
		return VisibilityShared
	default:
		return VisibilityPrivateDenied
	}
}
