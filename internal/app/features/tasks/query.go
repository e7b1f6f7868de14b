package tasks

import (
	"net/http"
	"time"

	tasksvc "github.com/dalemusser/taskhub/internal/app/services/tasks"
	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/inputval"
	"github.com/dalemusser/taskhub/internal/app/system/paging"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

// parseQuery reads the listing parameters shared by every task list:
//
//	page, limit, status, priority, assignedTo, dueFrom, dueTo, search,
//	sortBy (created_at|due_date|priority), order (asc|desc)
//
// Dates are RFC 3339 or YYYY-MM-DD. A bare dueTo date covers that whole day.
func parseQuery(r *http.Request) (tasksvc.Query, error) {
	pg, err := paging.Parse(r)
	if err != nil {
		return tasksvc.Query{}, err
	}
	q := tasksvc.Query{
		Page:     pg.Page,
		Limit:    pg.Limit,
		Status:   models.TaskStatus(query.Get(r, "status")),
		Priority: models.Priority(query.Get(r, "priority")),
		Search:   query.Get(r, "search"),
		SortBy:   models.TaskSort(query.Get(r, "sortBy")),
		Order:    query.Get(r, "order"),
	}
	if q.Order != "" && q.Order != "asc" && q.Order != "desc" {
		return tasksvc.Query{}, apperr.Validation("order must be asc or desc.")
	}
	if s := query.Get(r, "assignedTo"); s != "" {
		if q.Assignee, err = inputval.ParseID(s, "assignedTo"); err != nil {
			return tasksvc.Query{}, err
		}
	}
	if q.DueFrom, err = dateParam(r, "dueFrom", false); err != nil {
		return tasksvc.Query{}, err
	}
	if q.DueTo, err = dateParam(r, "dueTo", true); err != nil {
		return tasksvc.Query{}, err
	}
	if q.DueFrom != nil && q.DueTo != nil && q.DueTo.Before(*q.DueFrom) {
		return tasksvc.Query{}, apperr.Validation("dueTo must not be before dueFrom.")
	}
	return q, nil
}

func dateParam(r *http.Request, key string, endOfDay bool) (*time.Time, error) {
	s := query.Get(r, key)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, apperr.Validation(key + " must be a date (YYYY-MM-DD or RFC 3339).")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
