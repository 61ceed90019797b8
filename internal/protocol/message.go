// Package protocol defines the JSON event envelope exchanged between a
// connected peer and the server: the closed set of inbound/outbound event
// tags and their payload fields (spec.md section 6).
package protocol

// Inbound event types (client -> server).
const (
	TypeRegister           = "register"
	TypeSearch              = "search"
	TypeCancelSearch        = "cancel-search"
	TypeMessage             = "message"
	TypeTyping               = "typing"
	TypeTypingStopped        = "typingStopped"
	TypeNext                 = "next"
	TypeDisconnectPartner     = "disconnect-partner"
	TypeWebRTCOffer           = "webrtc-offer"
	TypeWebRTCAnswer          = "webrtc-answer"
	TypeWebRTCICECandidate    = "webrtc-ice-candidate"
	TypeWebRTCEnd             = "webrtc-end"
	TypeWebRTCReject          = "webrtc-reject"
	TypeVideoCallStatus       = "video-call-status"
	TypeCallToggleMedia       = "call-toggle-media"
	TypeScreenShareStatus     = "screen-share-status"
	TypeVideoCallRequest      = "video-call-request"
	TypeGetPartnerInfo        = "get-partner-info"
	TypeGetStats              = "get-stats"
	TypeHeartbeat             = "heartbeat"
)

// Outbound event types (server -> client).
const (
	TypeRegistered         = "registered"
	TypeRegisterError      = "register-error"
	TypeSearching          = "searching"
	TypeSearchingUpdate    = "searching-update"
	TypeSearchTimeout      = "search-timeout"
	TypeSearchError        = "search-error"
	TypeSearchCancelled    = "search-cancelled"
	TypeMatched            = "matched"
	TypeVideoMatchReady    = "video-match-ready"
	TypeVideoCallAutoStart = "video-call-auto-start"
	TypePartnerTyping        = "partnerTyping"
	TypePartnerTypingStopped = "partnerTypingStopped"
	TypeMessageOut           = "message"
	TypeMessageSent          = "message-sent"
	TypeMessageError         = "message-error"
	TypePartnerDisconnected  = "partnerDisconnected"
	TypeWebRTCError          = "webrtc-error"
	TypeStats                = "stats"
	TypeStatsUpdated         = "stats-updated"
	TypeHeartbeatResponse    = "heartbeat-response"
	TypePartnerInfo          = "partner-info"
)

// AgeRange mirrors profile.AgeRange for wire transport.
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Message is the single JSON envelope used for every inbound and outbound
// event. Only the fields relevant to Type are populated; the rest are left
// at their zero value and omitted from the wire encoding.
type Message struct {
	Type string `json:"type"`

	// register
	Username         string    `json:"username,omitempty"`
	Gender           string    `json:"gender,omitempty"`
	Age              int       `json:"age,omitempty"`
	Interests        []string  `json:"interests,omitempty"`
	ChatMode         string    `json:"chatMode,omitempty"`
	GenderPreference string    `json:"genderPreference,omitempty"`
	AgeRange         *AgeRange `json:"ageRange,omitempty"`
	Priority         float64   `json:"priority,omitempty"`

	// message / message-sent / message-error
	Text      string `json:"text,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	SenderName string `json:"senderUsername,omitempty"`

	// matched / video-match-ready / partnerDisconnected / partner-info
	PartnerID        string   `json:"partnerId,omitempty"`
	PartnerProfile   *PeerProfile `json:"partnerProfile,omitempty"`
	Compatibility    float64  `json:"compatibility,omitempty"`
	SharedInterests  []string `json:"sharedInterests,omitempty"`
	MatchMode        string   `json:"matchMode,omitempty"`
	RoomID           string   `json:"roomId,omitempty"`
	Reason           string   `json:"reason,omitempty"`

	// webrtc-*
	To       string         `json:"to,omitempty"`
	From     string         `json:"from,omitempty"`
	SDP      string         `json:"sdp,omitempty"`
	CallID   string         `json:"callId,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Candidate map[string]any `json:"candidate,omitempty"`

	// errors
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"code,omitempty"`

	// stats
	Stats *StatsPayload `json:"stats,omitempty"`

	// heartbeat
	ClientTime int64 `json:"clientTime,omitempty"`
}

// PeerProfile is the subset of a profile shared with a matched partner.
type PeerProfile struct {
	Username string   `json:"username"`
	Age      int      `json:"age"`
	Gender   string   `json:"gender"`
	Interests []string `json:"interests"`
}

// StatsPayload is the public shape of component G's stats snapshot.
type StatsPayload struct {
	OnlinePeers      int     `json:"onlinePeers"`
	SearchingPeers   int     `json:"searchingPeers"`
	ActivePairs      int     `json:"activePairs"`
	ActiveCalls      int     `json:"activeCalls"`
	WaitingRequests  int     `json:"waitingRequests"`
	TypingPeers      int     `json:"typingPeers"`
	AvgWaitSeconds   float64 `json:"avgWaitSeconds"`
}
