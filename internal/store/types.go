package store

// LogEntry is a single parsed record persisted to the index.
type LogEntry struct {
	ID         int64
	Timestamp  string
	Level      string
	Event      string
	Message    string
	IsAudit    bool
	DataJSON   string
	SourceFile string
	LineNumber int
	IndexedAt  string
}

// EntryInput is the set of fields needed to upsert a LogEntry.
type EntryInput struct {
	Timestamp  string
	Level      string
	Event      string
	Message    string
	IsAudit    bool
	DataJSON   string
	SourceFile string
	LineNumber int
}

// Filter is the common filter grammar shared by query_page, count, and
// aggregate. At most one field predicate is supported, by design, to bound
// plan complexity.
type Filter struct {
	From       string // inclusive ISO lower bound
	To         string // inclusive ISO upper bound
	Level      string // exact match, upper-cased by the store before comparison
	Audit      *bool  // nil = no filter
	FieldKey   string // paired with FieldValue; both empty = no field filter
	FieldValue string
}

// Cursor is the opaque pagination cursor: the (timestamp, id) of the last
// row returned on the previous page.
type Cursor struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
}

// Page is one page of query results.
type Page struct {
	Entries []LogEntry
	HasMore bool
	Limit   int
}

// Bucket is one row of an aggregate result.
type Bucket struct {
	Key   string
	Count int64
}

// PruneReport summarizes a retention pass.
type PruneReport struct {
	EntriesDeleted int64
	FieldsDeleted  int64
}

const (
	minLimit     = 1
	maxLimit     = 1000
	defaultLimit = 100

	defaultAggregateLimit = 25
)

// GroupBy enumerates the supported aggregate grouping dimensions.
type GroupBy string

const (
	GroupByLevel       GroupBy = "level"
	GroupByEvent       GroupBy = "event"
	GroupByField       GroupBy = "field"
	GroupByCorrelation GroupBy = "correlation"
)

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	if limit < minLimit {
		return minLimit
	}
	return limit
}
