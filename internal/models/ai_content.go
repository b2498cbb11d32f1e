package models

// ContentType enumerates the kinds of generated content.
type ContentType int

const (
	ContentLongSummary        ContentType = 1
	ContentShortSummary       ContentType = 2
	ContentDiscussion         ContentType = 10
	ContentRecommendRead      ContentType = 20
	ContentAssociatedQuestion ContentType = 30
)

// RequestStatus is the lifecycle of a content request.
type RequestStatus int

const (
	RequestStart    RequestStatus = 1
	RequestReceived RequestStatus = 2
	RequestHandling RequestStatus = 3
	RequestFinished RequestStatus = 10
	// RequestDeprecated marks a request whose cached artifact must no
	// longer be served.
	RequestDeprecated RequestStatus = 100
)

// ResponseStatus is the lifecycle of a generated response or discuss node.
type ResponseStatus int

const (
	ResponseGenerating ResponseStatus = 1
	ResponseFinished   ResponseStatus = 10
	ResponseDeprecated ResponseStatus = 100
	ResponseError      ResponseStatus = 1000
)

// RelatedType identifies the subject a request or thread is attached to.
type RelatedType int

const (
	RelatedChannel RelatedType = 1
	RelatedColumn  RelatedType = 2
	RelatedArticle RelatedType = 3
)

// Valid reports whether t is a known related type.
func (t RelatedType) Valid() bool {
	return t == RelatedChannel || t == RelatedColumn || t == RelatedArticle
}

// ContentRequestModel is a normalized generation request. The fingerprint
// is derived from (content_type, query, params) only, never from caller
// identity, so identical questions from different users share one cache
// slot.
type ContentRequestModel struct {
	Base
	ContentType ContentType   `json:"content_type" gorm:"not null;index"`
	Stream      bool          `json:"stream"`
	Query       string        `json:"query"        gorm:"type:text;not null"`
	Params      JSONMap       `json:"params"       gorm:"type:json;serializer:json"`
	Fingerprint string        `json:"fingerprint"  gorm:"type:char(64);index;not null"`
	Status      RequestStatus `json:"status"       gorm:"default:1;index"`
}

func (ContentRequestModel) TableName() string { return "ai_content_requests" }

// TokenBuffer holds the in-flight token stream of a response still being
// generated. It is cleared on finalize.
type TokenBuffer struct {
	Generating []string `json:"generating"`
}

// ContentResponseModel is the persisted, incrementally written result of
// one generation run. A reader polling the row mid-stream sees the
// concatenation of every chunk appended so far.
type ContentResponseModel struct {
	Base
	RequestID    string         `json:"request_id"     gorm:"type:char(36);index;not null"`
	IsGenerating int            `json:"is_generating"  gorm:"default:0"`
	Content      string         `json:"content"        gorm:"type:longtext"`
	Tokens       TokenBuffer    `json:"tokens"         gorm:"type:json;serializer:json"`
	Usage        Usage          `json:"usage"          gorm:"type:json;serializer:json"`
	CacheHitCnt  int            `json:"cache_hit_cnt"  gorm:"default:0"`
	Status       ResponseStatus `json:"status"         gorm:"default:1;index"`
}

func (ContentResponseModel) TableName() string { return "ai_content_responses" }
