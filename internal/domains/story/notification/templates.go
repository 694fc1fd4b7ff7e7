package notification

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	UpdateSubject = "Black Cat Story Sharing - Update"
	InviteSubject = "News from Black Cat Story Sharing"

	UpdateStoryAvailable = "The story is now available to play."
	UpdateSnippetAdded   = "A new Snippet has been added to the story."
)

// TitleCase renders a story title the way pages and emails show it.
// A Caser keeps state between calls, so each call gets its own.
func TitleCase(title string) string {
	return cases.Title(language.English).String(title)
}

// Templates renders the notification emails. SiteDomain has no trailing slash.
type Templates struct {
	SiteDomain string
	From       string
}

func (t Templates) storyURL(id uuid.UUID) string {
	return fmt.Sprintf("%s/stories/%s", t.SiteDomain, id)
}

// Update is the message sent to active writers when their story changes
func (t Templates) Update(storyID uuid.UUID, title, update string) (subject, body string) {
	var b strings.Builder
	fmt.Fprintf(&b, "We've got an update regarding your story \"%s\":\n", TitleCase(title))
	fmt.Fprintf(&b, "%s\n", update)
	fmt.Fprintf(&b, "You can visit your story here: %s\n", t.storyURL(storyID))
	fmt.Fprintf(&b, "If you don't want to receive updates about this story, set it as inactive in your personal stories here: %s/stories/personal\n", t.SiteDomain)
	fmt.Fprintf(&b, "Kindly, the %s team.", t.SiteDomain)
	return UpdateSubject, b.String()
}

// Invite is the message sent to every writer of a newly started story
func (t Templates) Invite(storyID uuid.UUID, title string) (subject, body string) {
	var b strings.Builder
	b.WriteString("There is a new story\n")
	fmt.Fprintf(&b, "\"%s\"\n", TitleCase(title))
	fmt.Fprintf(&b, "Set it as active in your personal stories to start writing: %s/stories/personal\n", t.SiteDomain)
	fmt.Fprintf(&b, "You can visit the story here: %s", t.storyURL(storyID))
	return InviteSubject, b.String()
}
