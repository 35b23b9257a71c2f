package agent

// Status tags the outcome of a completion request.
type Status string

const (
	StatusOK            Status = "ok"
	StatusNotConfigured Status = "not_configured"
	StatusFailed        Status = "failed"
)

// NotConfiguredMessage is stored in place of a narrative when no API key is set.
const NotConfiguredMessage = "Please set your OPENROUTER_API_KEY environment variable to use AI features."

const errorPrefix = "Error getting AI response: "

// Completion is the tagged result of a chat completion. Callers branch on
// Status; Narrative renders the text that gets stored and displayed.
type Completion struct {
	Status Status
	Text   string
	Err    error
}

func ok(text string) Completion {
	return Completion{Status: StatusOK, Text: text}
}

func notConfigured() Completion {
	return Completion{Status: StatusNotConfigured, Text: NotConfiguredMessage}
}

func failed(err error) Completion {
	return Completion{Status: StatusFailed, Err: err}
}

// OK reports whether the text is a genuine model reply.
func (c Completion) OK() bool {
	return c.Status == StatusOK
}

// Narrative is never empty.
func (c Completion) Narrative() string {
	switch c.Status {
	case StatusOK, StatusNotConfigured:
		return c.Text
	default:
		if c.Err == nil {
			return errorPrefix + "unknown error"
		}
		return errorPrefix + c.Err.Error()
	}
}
