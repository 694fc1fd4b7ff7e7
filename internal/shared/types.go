package shared

// Task types
const (
	TypeSendStoryEmail      = "email:story_notification"
	TypePurgeDeletedStories = "story:purge_deleted"
)

// Queues
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// StoryEmailPayload is a single notification email handed to the worker
type StoryEmailPayload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// PurgeDeletedStoriesPayload drives the scheduled purge
type PurgeDeletedStoriesPayload struct {
	Limit int `json:"limit"`
}
