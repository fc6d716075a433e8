package runner

const (
	// DefaultConcurrency bounds parallel targets when Options leaves it unset.
	DefaultConcurrency = 4

	// History keeps this many reports for the review server.
	HistorySize = 20

	// EventBuffer sizes the result event channel.
	EventBuffer = 256
)
