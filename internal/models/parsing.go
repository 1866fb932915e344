package models

import "encoding/json"

// ContentType identifies the kind of Telegram listing a task scrapes.
type ContentType string

const (
	ContentTypeChannels ContentType = "channels"
	ContentTypeChats    ContentType = "chats"
)

// KnownContentType reports whether the value is a member of the closed set.
func KnownContentType(ct ContentType) bool {
	switch ct {
	case ContentTypeChannels, ContentTypeChats:
		return true
	}
	return false
}

// ParsingStatus is the remote task status. Transitions only move forward:
// pending/running may be observed any number of times, completed and failed
// are terminal.
type ParsingStatus string

const (
	StatusPending   ParsingStatus = "pending"
	StatusRunning   ParsingStatus = "running"
	StatusCompleted ParsingStatus = "completed"
	StatusFailed    ParsingStatus = "failed"
)

// Terminal reports whether no further status transitions follow.
func (s ParsingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses for the forward-only transition check.
func (s ParsingStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

// CanTransition reports whether moving from s to next respects the
// forward-only status ordering.
func (s ParsingStatus) CanTransition(next ParsingStatus) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// Categories is the fixed set of topical tags accepted by the backend.
var Categories = []string{
	"crypto",
	"news",
	"tech",
	"business",
	"entertainment",
	"education",
	"sports",
	"politics",
	"lifestyle",
	"gaming",
}

// KnownCategory reports whether the tag is one of the fixed categories.
func KnownCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

const (
	// MinPages and MaxPages bound the per-task page count.
	MinPages = 1
	MaxPages = 50
	// DefaultMaxPages is the page count used when none is given.
	DefaultMaxPages = 3
)

// ParsingRequest is the POST /start-parsing body.
type ParsingRequest struct {
	Category     string        `json:"category"`
	ContentTypes []ContentType `json:"content_types"`
	MaxPages     int           `json:"max_pages"`
}

// StartResponse is the POST /start-parsing reply.
type StartResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is the GET /parsing-status/{task_id} reply.
type StatusResponse struct {
	TaskID       string        `json:"task_id"`
	Status       ParsingStatus `json:"status"`
	Progress     int           `json:"progress"`
	TotalPages   int           `json:"total_pages"`
	ResultsCount int           `json:"results_count"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// Subscribers carries the remote subscriber count, which the backend
// formats either as a string or as a bare number.
type Subscribers string

// UnmarshalJSON accepts both JSON strings and numbers.
func (s *Subscribers) UnmarshalJSON(data []byte) error {
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) > 0 && raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return err
		}
		*s = Subscribers(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return err
	}
	*s = Subscribers(num.String())
	return nil
}

// ResultRecord is a single scraped channel or chat entry.
type ResultRecord struct {
	Name        string      `json:"name"`
	Link        string      `json:"link"`
	Subscribers Subscribers `json:"subscribers"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category,omitempty"`
	ContentType ContentType `json:"content_type,omitempty"`
}

// ResultsResponse is the GET /parsing-results/{task_id} reply.
type ResultsResponse struct {
	TaskID       string         `json:"task_id"`
	Status       ParsingStatus  `json:"status"`
	Category     string         `json:"category"`
	ContentTypes []ContentType  `json:"content_types"`
	Results      []ResultRecord `json:"results"`
	TotalResults int            `json:"total_results"`
}
