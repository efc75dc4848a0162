package models

// VotableType names the kind of entity a vote targets.
type VotableType string

const (
	VotableQuestion VotableType = "question"
	VotableAnswer   VotableType = "answer"
)

func (t VotableType) Valid() bool {
	return t == VotableQuestion || t == VotableAnswer
}

// Vote is one voter's stance on one question or answer. VotableType may be
// empty on rows written before the discriminator existed.
type Vote struct {
	Base
	VoterID     string      `gorm:"type:varchar(36);not null;uniqueIndex:idx_votes_voter_target,priority:1" json:"voter_id"`
	Voter       User        `gorm:"foreignKey:VoterID;constraint:OnDelete:CASCADE" json:"-"`
	VotableType VotableType `gorm:"type:varchar(16);not null;default:'';index:idx_votes_target,priority:1" json:"votable_type"`
	VotableID   string      `gorm:"type:varchar(36);not null;uniqueIndex:idx_votes_voter_target,priority:2;index:idx_votes_target,priority:2" json:"votable_id"`
	VoteType    int         `gorm:"not null;check:chk_votes_vote_type,vote_type IN (-1, 1)" json:"vote_type"`
}

type CastVoteRequest struct {
	VotableID   string      `json:"votable_id" binding:"required"`
	VotableType VotableType `json:"votable_type" binding:"required"`
	VoteType    int         `json:"vote_type"`
}

type CastVoteResponse struct {
	VotableID   string `json:"votable_id"`
	NewVoteType int    `json:"new_vote_type"`
	TotalVotes  int    `json:"total_votes"`
}

type RevokeVoteResponse struct {
	Message    string `json:"message"`
	TotalVotes int    `json:"total_votes"`
}
