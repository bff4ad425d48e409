package models

import "time"

// ChangeSetQueryOpts holds filters for listing change sets.
type ChangeSetQueryOpts struct {
	Author string
	Since  *time.Time
	Limit  int
	Offset int
}
