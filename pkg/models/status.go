package models

// PageStatus is the stored lifecycle state of a discovered URL.
type PageStatus string

const (
	PageStatusUnset    PageStatus = ""          // Zero value
	PageStatusPending  PageStatus = "pending"   // Claimed, outcome not yet recorded
	PageStatusSuccess  PageStatus = "success"   // Fetched and accepted
	PageStatusFailure  PageStatus = "failure"   // Fetch failed or rejected by policy
	PageStatusNotFound PageStatus = "not_found" // No entry for the URL
	PageStatusDBError  PageStatus = "db_error"  // Lookup itself failed
)

// String renders the zero value readably for logs.
func (s PageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid reports whether the status is one a crawl run can record.
func (s PageStatus) IsValid() bool {
	switch s {
	case PageStatusPending, PageStatusSuccess, PageStatusFailure:
		return true
	}
	return false
}
