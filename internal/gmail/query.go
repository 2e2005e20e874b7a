package gmail

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the date format accepted by Gmail's after: and before: operators.
const DateLayout = "2006/01/02"

// SearchCriteria is a structured Gmail search. Zero values add no clause.
type SearchCriteria struct {
	IsUnread      bool
	Labels        []string
	From          string
	To            string
	Subject       string
	After         string
	Before        string
	HasAttachment bool
	IsStarred     bool
	IsImportant   bool
	InTrash       bool
}

// BuildQuery renders the criteria as a Gmail query string. Clauses appear in
// a fixed order and values are inserted verbatim, without quoting.
func (c SearchCriteria) BuildQuery() string {
	var parts []string
	if c.IsUnread {
		parts = append(parts, "is:unread")
	}
	for _, label := range c.Labels {
		if label != "" {
			parts = append(parts, "label:"+label)
		}
	}
	if c.From != "" {
		parts = append(parts, "from:"+c.From)
	}
	if c.To != "" {
		parts = append(parts, "to:"+c.To)
	}
	if c.Subject != "" {
		parts = append(parts, "subject:"+c.Subject)
	}
	if c.After != "" {
		parts = append(parts, "after:"+c.After)
	}
	if c.Before != "" {
		parts = append(parts, "before:"+c.Before)
	}
	if c.HasAttachment {
		parts = append(parts, "has:attachment")
	}
	if c.IsStarred {
		parts = append(parts, "is:starred")
	}
	if c.IsImportant {
		parts = append(parts, "is:important")
	}
	if c.InTrash {
		parts = append(parts, "in:trash")
	}
	return strings.Join(parts, " ")
}

// ValidateDate checks that s is a real calendar date written as YYYY/MM/DD.
func ValidateDate(s string) error {
	if len(s) != len(DateLayout) {
		return fmt.Errorf("date %q is not in the required format YYYY/MM/DD", s)
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("date %q is not in the required format YYYY/MM/DD", s)
	}
	return nil
}
