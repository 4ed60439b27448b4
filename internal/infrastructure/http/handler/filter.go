package handler

import (
	"fmt"
	"net/url"
	"time"

	"github.com/rezkam/taskflow/internal/domain"
)

// parseTaskFilter builds a filter from query parameters.
//
//	status   task status
//	date     calendar day or RFC 3339 instant
//	from,to  inclusive deadline range; both or neither
//	week_of  any moment in the Sunday-to-Saturday week
//	list_id  list membership
//	tz       IANA zone for calendar days, UTC by default
func parseTaskFilter(q url.Values) (domain.TaskFilter, error) {
	loc := time.UTC
	if tz := q.Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return domain.TaskFilter{}, fmt.Errorf("%w: tz: %w", domain.ErrInvalidFilter, err)
		}
		loc = l
	}

	return domain.NewTaskFilter(domain.TaskFilterInput{
		Status:   q.Get("status"),
		Date:     q.Get("date"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		WeekOf:   q.Get("week_of"),
		ListID:   q.Get("list_id"),
		Location: loc,
	})
}
