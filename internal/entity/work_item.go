package entity

import (
	"github.com/joseph-ayodele/quotation-intake/constants"
)

// WorkItem is one staged attachment set, identified by its folder name
// <reference>_<emailId> under the unprocessed prefix.
type WorkItem struct {
	ID        string              `json:"id"`
	Reference string              `json:"reference"`
	EmailID   string              `json:"email_id"`
	Files     []string            `json:"files"`
	State     constants.ItemState `json:"state"`
	LockHeld  bool                `json:"lock_held"`
}

// NewWorkItem parses a folder name into an unprocessed work item.
func NewWorkItem(itemID string) (WorkItem, bool) {
	ref, emailID, ok := constants.SplitItemID(itemID)
	if !ok {
		return WorkItem{}, false
	}
	return WorkItem{
		ID:        itemID,
		Reference: ref,
		EmailID:   emailID,
		State:     constants.ItemStateUnprocessed,
	}, true
}
