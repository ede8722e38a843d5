package doctor

import (
	"context"
	"fmt"

	"github.com/hay-kot/boatpub/internal/core/runlog"
)

// HistoryCheck verifies the run history file and reports the last run.
type HistoryCheck struct {
	store runlog.Store
}

// NewHistoryCheck creates a run history check.
func NewHistoryCheck(store runlog.Store) *HistoryCheck {
	return &HistoryCheck{store: store}
}

func (c *HistoryCheck) Name() string {
	return "Run History"
}

func (c *HistoryCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	entries, err := c.store.List(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "History readable",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  "History readable",
		Status: StatusPass,
		Detail: fmt.Sprintf("%d run(s) recorded", len(entries)),
	})

	if len(entries) == 0 {
		return result
	}

	last := entries[0]
	item := CheckItem{
		Label:  "Last run " + last.ID,
		Status: StatusPass,
		Detail: fmt.Sprintf("%d/%d accepted", last.Accepted, last.Requested),
	}
	if last.Failed() {
		item.Status = StatusWarn
		if last.Error != "" {
			item.Detail = last.Error
		} else {
			item.Detail = fmt.Sprintf("%d rejected", last.Rejected)
		}
	}
	result.Items = append(result.Items, item)

	return result
}
