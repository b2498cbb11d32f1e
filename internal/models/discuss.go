package models

// DiscussRole is the author role of a discuss node.
type DiscussRole string

const (
	RoleUser      DiscussRole = "user"
	RoleAssistant DiscussRole = "assistant"
	RoleSystem    DiscussRole = "system"
)

// DiscussThreadModel is a branching conversation attached to a subject
// (channel, column or article). One thread exists per distinct
// (fingerprint, user_hash) pair; depth only ever grows.
type DiscussThreadModel struct {
	Base
	UUID        string      `json:"uuid"         gorm:"type:char(36);uniqueIndex;not null"`
	RelatedType RelatedType `json:"related_type" gorm:"not null"`
	RelatedID   int64       `json:"related_id"   gorm:"index"`
	Params      JSONMap     `json:"params"       gorm:"type:json;serializer:json"`
	Fingerprint string      `json:"fingerprint"  gorm:"type:char(64);index;not null"`
	UserHash    string      `json:"user_hash"    gorm:"index"`
	UserID      int64       `json:"user_id"`
	Depth       int         `json:"depth"        gorm:"default:0"`
	Background  string      `json:"background"   gorm:"type:text"`
	IsHidden    int         `json:"is_hidden"    gorm:"default:0"`
}

func (DiscussThreadModel) TableName() string { return "discuss_threads" }

// DiscussModel is one node of a discussion thread. ReplyUUID is empty for
// a node replying to the thread root. The engine guarantees at most one
// non-deprecated node per (thread, depth).
type DiscussModel struct {
	Base
	UUID        string         `json:"uuid"        gorm:"type:char(36);uniqueIndex;not null"`
	RelatedType RelatedType    `json:"related_type"`
	ThreadID    string         `json:"thread_id"   gorm:"type:char(36);index;not null"`
	ThreadUUID  string         `json:"thread_uuid" gorm:"type:char(36);index;not null"`
	ReplyID     *string        `json:"reply_id"    gorm:"type:char(36)"`
	ReplyUUID   *string        `json:"reply_uuid"  gorm:"type:char(36)"`
	Depth       int            `json:"depth"       gorm:"index;not null"`
	Content     string         `json:"content"     gorm:"type:longtext"`
	Role        DiscussRole    `json:"role"        gorm:"type:varchar(16);not null"`
	Tokens      TokenBuffer    `json:"tokens"      gorm:"type:json;serializer:json"`
	Usage       Usage          `json:"usage"       gorm:"type:json;serializer:json"`
	UserID      *int64         `json:"user_id"`
	IsHidden    int            `json:"is_hidden"   gorm:"default:0"`
	Like        int            `json:"like"        gorm:"default:0"`
	Trample     int            `json:"trample"     gorm:"default:0"`
	IsSummary   int            `json:"is_summary"  gorm:"default:0"`
	Status      ResponseStatus `json:"status"      gorm:"default:1;index"`
}

func (DiscussModel) TableName() string { return "discusses" }
