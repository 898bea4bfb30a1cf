package insight

// DataType describes how a profile datum is stored.
type DataType string

const (
	DataTypeSingleValue DataType = "single_value"
	DataTypeCollection  DataType = "collection"
)

// RecommendedAction is the extractor's verdict for a contradiction.
type RecommendedAction string

const (
	ActionKeepNew            RecommendedAction = "keep_new"
	ActionKeepExisting       RecommendedAction = "keep_existing"
	ActionMerge              RecommendedAction = "merge"
	ActionNeedsClarification RecommendedAction = "needs_clarification"
)

// Resolution labels how a contradiction was settled.
type Resolution string

const (
	ResolutionKeptExisting Resolution = "kept_existing_value"
	ResolutionMerged       Resolution = "merged_values"
	ResolutionUsedNew      Resolution = "used_new_value"
)

// Message is a single conversation turn item.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered sequence of messages.
type Conversation []Message

// UserEntry is one fact the extractor pulled out of a conversation.
// ParsedValue may carry a pre-split list for collection entries; when the
// model returns one it is preferred over re-parsing Answer.
type UserEntry struct {
	Question    string      `json:"question"`
	Answer      string      `json:"answer"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory"`
	DataType    DataType    `json:"data_type"`
	ParsedValue interface{} `json:"parsed_value,omitempty"`
	Confidence  float64     `json:"confidence"`
}

// EntryRecord is the persisted form of a user answer. EntryID encodes the
// record's location as "<category>.<subcategory>.<uuid>".
type EntryRecord struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
	EntryID   string `json:"entry_id"`
}

// Contradiction describes a conflict between an extracted value and the
// value already stored for the same slot.
type Contradiction struct {
	Category          string            `json:"category"`
	Subcategory       string            `json:"subcategory"`
	DataType          DataType          `json:"data_type"`
	ExistingValue     interface{}       `json:"existing_value"`
	NewValue          interface{}       `json:"new_value"`
	EntryID           string            `json:"entry_id"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
	Reasoning         string            `json:"reasoning"`
}

// ReviewEntry is a contradiction parked for human resolution.
type ReviewEntry struct {
	Contradiction
	EntryData EntryRecord `json:"entry_data"`
	Status    string      `json:"status"`
}

// ReviewStatusPending is the status every queued contradiction starts with.
const ReviewStatusPending = "pending"

// ResolutionRecord is the audit trail entry for a settled contradiction.
type ResolutionRecord struct {
	Timestamp  string     `json:"timestamp"`
	EntryID    string     `json:"entry_id"`
	Resolution Resolution `json:"resolution"`
}

// SingleValueDatum is the current canonical value for a single_value slot.
type SingleValueDatum struct {
	Value     string `json:"value"`
	EntryID   string `json:"entry_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CollectionDatum is the current canonical value for a collection slot.
type CollectionDatum struct {
	Items     []string `json:"items"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// VersionRecord archives a previous profile datum.
type VersionRecord struct {
	Value       interface{} `json:"value"`
	Timestamp   string      `json:"timestamp"`
	ChangeType  string      `json:"change_type"`
	TriggeredBy string      `json:"triggered_by"`
}

// ExtractionResult is the parsed output of one extractor call.
type ExtractionResult struct {
	Entries        []UserEntry     `json:"entries"`
	Contradictions []Contradiction `json:"contradictions"`
}

// Projection is the post-turn view of a user's insight state, pushed to
// subscribed clients after every successful turn.
type Projection struct {
	ProfileData              map[string]interface{} `json:"profile_data"`
	QuestionsData            map[string]interface{} `json:"questions_data"`
	ReviewQueue              []interface{}          `json:"review_queue"`
	Contradictions           map[string]interface{} `json:"contradictions"`
	ContradictionReviewQueue []interface{}          `json:"contradiction_review_queue"`
}
