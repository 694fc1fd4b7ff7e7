package service

// Status lines shown on the story page
const (
	MessageEmpty         = "This story is still empty!"
	MessageUnavailable   = "This story is unavailable. Our game cannot be played on here yet!"
	MessageInactive      = "If you want to play here, visit your personal stories and set it as active."
	MessageWaitForOthers = "Thank you for adding your snippet! Wait for one of the other writers to add theirs."
)
