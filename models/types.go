package models

import (
	"encoding/json"
	"time"
)

// Event hook operations
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
	OpManual = "MANUAL"
)

// Notification kinds
const (
	NotificationNewComment       = "new_comment"
	NotificationProposalLinked   = "proposal_linked"
	NotificationSubscribedToPost = "subscribed"
)

// Tech committee statuses that hide the proposal from listings
var ClosedProposalStatuses = []string{"Closed", "Approved", "Executed", "Disapproved"}

// Request types

// EventHookRequest is the payload sent by the data layer for a table event
type EventHookRequest struct {
	ID    string    `json:"id"`
	Event HookEvent `json:"event"`
	Table HookTable `json:"table"`
}

type HookEvent struct {
	Op   string   `json:"op"`
	Data HookData `json:"data"`
}

type HookData struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

type HookTable struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// Rows carried in HookData.New

type PostRow struct {
	ID       string  `json:"id"`
	AuthorID string  `json:"author_id"`
	Title    *string `json:"title"`
	TypeID   int     `json:"type_id"`
	TopicID  int     `json:"topic_id"`
}

type CommentRow struct {
	ID       string `json:"id"`
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
	Content  string `json:"content"`
}

type OnchainLinkRow struct {
	ID                             string  `json:"id"`
	PostID                         string  `json:"post_id"`
	ProposerAddress                string  `json:"proposer_address"`
	OnchainReferendumID            *uint32 `json:"onchain_referendum_id"`
	OnchainMotionID                *uint32 `json:"onchain_motion_id"`
	OnchainTechCommitteeProposalID *uint32 `json:"onchain_tech_committee_proposal_id"`
}

// UploadPhotoRequest is an action call for the uploadPhoto mutation
type UploadPhotoRequest struct {
	Action struct {
		Name string `json:"name"`
	} `json:"action"`
	Input UploadPhotoInput `json:"input"`
}

type UploadPhotoInput struct {
	Token string `json:"token"`
	Image string `json:"image"`
}

// Response types

type MessageResponse struct {
	Message string `json:"message"`
}

type EventHookResponse struct {
	Message       string `json:"message"`
	Subscriptions int    `json:"subscriptions"`
	Notifications int    `json:"notifications"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type VoteInfoResponse struct {
	ReferendumID         uint32             `json:"referendum_id"`
	Threshold            string             `json:"threshold"`
	Status               string             `json:"status"`
	Message              string             `json:"message,omitempty"`
	AyeAmount            string             `json:"aye_amount,omitempty"`
	NayAmount            string             `json:"nay_amount,omitempty"`
	AyeWithoutConviction string             `json:"aye_without_conviction,omitempty"`
	NayWithoutConviction string             `json:"nay_without_conviction,omitempty"`
	Turnout              string             `json:"turnout,omitempty"`
	TotalIssuance        string             `json:"total_issuance,omitempty"`
	TurnoutPercentage    float64            `json:"turnout_percentage"`
	IsPassing            *bool              `json:"is_passing"`
	SwingThreshold       string             `json:"swing_threshold"`
	Formatted            *FormattedBalances `json:"formatted,omitempty"`
}

type FormattedBalances struct {
	AyeAmount      string `json:"aye_amount"`
	NayAmount      string `json:"nay_amount"`
	Turnout        string `json:"turnout"`
	SwingThreshold string `json:"swing_threshold"`
}

// StreamEvent is pushed to event stream clients for every processed hook
type StreamEvent struct {
	Table    string    `json:"table"`
	Op       string    `json:"op"`
	ID       string    `json:"id"`
	PostID   string    `json:"post_id,omitempty"`
	Received time.Time `json:"received"`
}

// Domain types

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      *string   `json:"name,omitempty"`
	Image     *string   `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Author struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Name     *string `json:"name,omitempty"`
	Image    *string `json:"image,omitempty"`
}

type CalendarEvent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   *string   `json:"content"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Module    *string   `json:"module"`
	Network   string    `json:"network"`
	URL       *string   `json:"url"`
}

type IDName struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type TechCommitteeProposal struct {
	ID     uint32  `json:"id"`
	Status string  `json:"status"`
	Method *string `json:"method,omitempty"`
}

type OnchainLink struct {
	ID                             string                 `json:"id"`
	OnchainTechCommitteeProposalID uint32                 `json:"onchain_tech_committee_proposal_id"`
	OnchainTechCommitteeProposal   *TechCommitteeProposal `json:"onchain_tech_committee_proposal"` // nil once closed
	ProposerAddress                string                 `json:"proposer_address"`
}

type TechCommitteeProposalPost struct {
	ID            string      `json:"id"`
	Title         *string     `json:"title"`
	Author        Author      `json:"author"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	CommentsCount int         `json:"comments_count"`
	Type          IDName      `json:"type"`
	Topic         IDName      `json:"topic"`
	OnchainLink   OnchainLink `json:"onchain_link"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PostID    *string   `json:"post_id,omitempty"`
	CommentID *string   `json:"comment_id,omitempty"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
