package ops

import "encoding/json"

// Payload is implemented by every typed mutation payload.
type Payload interface {
	// Kind returns the mutation kind the payload builds.
	Kind() Kind
	// Account returns the acting account.
	Account() string
}

// Build dispatches to the builder for the payload's kind.
func Build(p Payload) (Operation, error) {
	switch v := p.(type) {
	case VotePayload:
		return BuildVote(v)
	case CommentPayload:
		return BuildComment(v)
	case TransferPayload:
		return BuildTransfer(v)
	case DelegatePayload:
		return BuildDelegate(v)
	case WitnessVotePayload:
		return BuildWitnessVote(v)
	case SubscribePayload:
		return BuildSubscribe(v)
	case SetRolePayload:
		return BuildSetRole(v)
	case ClaimRewardPayload:
		return BuildClaimReward(v)
	default:
		return Operation{}, invalid("payload", "has unknown kind")
	}
}

// VotePayload votes on a piece of content.
type VotePayload struct {
	Voter    string `json:"voter"`
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
	Weight   int16  `json:"weight"` // -10000..10000
}

func (p VotePayload) Kind() Kind      { return KindVote }
func (p VotePayload) Account() string { return p.Voter }

// BuildVote builds a vote operation.
func BuildVote(p VotePayload) (Operation, error) {
	if p.Voter == "" {
		return Operation{}, invalid("voter", "is required")
	}
	if p.Author == "" {
		return Operation{}, invalid("author", "is required")
	}
	if p.Permlink == "" {
		return Operation{}, invalid("permlink", "is required")
	}
	if p.Weight < -10000 || p.Weight > 10000 {
		return Operation{}, invalid("weight", "must be within -10000..10000")
	}
	return marshalOp(KindVote, p)
}

// CommentPayload creates a root post or a reply.
type CommentPayload struct {
	ParentAuthor   string          `json:"parent_author"`
	ParentPermlink string          `json:"parent_permlink"`
	Author         string          `json:"author"`
	Permlink       string          `json:"permlink"`
	Title          string          `json:"title"`
	Body           string          `json:"body"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

func (p CommentPayload) Kind() Kind      { return KindComment }
func (p CommentPayload) Account() string { return p.Author }

// IsReply reports whether the comment targets existing content.
func (p CommentPayload) IsReply() bool { return p.ParentAuthor != "" }

// BuildComment builds a comment operation.
func BuildComment(p CommentPayload) (Operation, error) {
	if p.Author == "" {
		return Operation{}, invalid("author", "is required")
	}
	if p.Permlink == "" {
		return Operation{}, invalid("permlink", "is required")
	}
	if p.Body == "" {
		return Operation{}, invalid("body", "is required")
	}
	if p.ParentAuthor == "" && p.ParentPermlink == "" {
		return Operation{}, invalid("parent_permlink", "is required for root posts")
	}
	return marshalOp(KindComment, p)
}

// TransferPayload moves funds between accounts.
type TransferPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount Amount `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

func (p TransferPayload) Kind() Kind      { return KindTransfer }
func (p TransferPayload) Account() string { return p.From }

// BuildTransfer builds a transfer operation.
func BuildTransfer(p TransferPayload) (Operation, error) {
	if p.From == "" {
		return Operation{}, invalid("from", "is required")
	}
	if p.To == "" {
		return Operation{}, invalid("to", "is required")
	}
	if p.From == p.To {
		return Operation{}, invalid("to", "must differ from sender")
	}
	if err := p.Amount.validate("amount"); err != nil {
		return Operation{}, err
	}
	return marshalOp(KindTransfer, p)
}

// DelegatePayload delegates stake to another account. Zero units removes an
// existing delegation, so the amount validation differs from transfers.
type DelegatePayload struct {
	Delegator string `json:"delegator"`
	Delegatee string `json:"delegatee"`
	Amount    Amount `json:"amount"`
}

func (p DelegatePayload) Kind() Kind      { return KindDelegate }
func (p DelegatePayload) Account() string { return p.Delegator }

// BuildDelegate builds a delegation operation.
func BuildDelegate(p DelegatePayload) (Operation, error) {
	if p.Delegator == "" {
		return Operation{}, invalid("delegator", "is required")
	}
	if p.Delegatee == "" {
		return Operation{}, invalid("delegatee", "is required")
	}
	if p.Delegator == p.Delegatee {
		return Operation{}, invalid("delegatee", "must differ from delegator")
	}
	if p.Amount.Units < 0 {
		return Operation{}, invalid("amount", "must not be negative")
	}
	if p.Amount.Symbol == "" {
		return Operation{}, invalid("amount.symbol", "is required")
	}
	return marshalOp(KindDelegate, p)
}

// WitnessVotePayload approves or unapproves a block producer.
type WitnessVotePayload struct {
	Actor   string `json:"account"`
	Witness string `json:"witness"`
	Approve bool   `json:"approve"`
}

func (p WitnessVotePayload) Kind() Kind      { return KindWitnessVote }
func (p WitnessVotePayload) Account() string { return p.Actor }

// BuildWitnessVote builds a witness vote operation.
func BuildWitnessVote(p WitnessVotePayload) (Operation, error) {
	if p.Actor == "" {
		return Operation{}, invalid("account", "is required")
	}
	if p.Witness == "" {
		return Operation{}, invalid("witness", "is required")
	}
	return marshalOp(KindWitnessVote, p)
}

// SubscribePayload joins or leaves a community.
type SubscribePayload struct {
	Actor     string `json:"account"`
	Community string `json:"community"`
	Subscribe bool   `json:"subscribe"`
}

func (p SubscribePayload) Kind() Kind      { return KindSubscribe }
func (p SubscribePayload) Account() string { return p.Actor }

// BuildSubscribe builds a community subscription operation.
func BuildSubscribe(p SubscribePayload) (Operation, error) {
	if p.Actor == "" {
		return Operation{}, invalid("account", "is required")
	}
	if p.Community == "" {
		return Operation{}, invalid("community", "is required")
	}
	return marshalOp(KindSubscribe, p)
}

// SetRolePayload assigns a community role to an account.
type SetRolePayload struct {
	Actor     string `json:"account"` // acting moderator/admin
	Community string `json:"community"`
	Subject   string `json:"subject"` // account receiving the role
	Role      string `json:"role"`
}

func (p SetRolePayload) Kind() Kind      { return KindSetRole }
func (p SetRolePayload) Account() string { return p.Actor }

var communityRoles = map[string]bool{
	"owner": true, "admin": true, "mod": true, "member": true, "guest": true, "muted": true,
}

// BuildSetRole builds a community role assignment operation.
func BuildSetRole(p SetRolePayload) (Operation, error) {
	if p.Actor == "" {
		return Operation{}, invalid("account", "is required")
	}
	if p.Community == "" {
		return Operation{}, invalid("community", "is required")
	}
	if p.Subject == "" {
		return Operation{}, invalid("subject", "is required")
	}
	if !communityRoles[p.Role] {
		return Operation{}, invalid("role", "is not a recognized community role")
	}
	return marshalOp(KindSetRole, p)
}

// ClaimRewardPayload claims pending author/curation rewards.
type ClaimRewardPayload struct {
	Actor   string   `json:"account"`
	Rewards []Amount `json:"rewards"`
}

func (p ClaimRewardPayload) Kind() Kind      { return KindClaimReward }
func (p ClaimRewardPayload) Account() string { return p.Actor }

// BuildClaimReward builds a reward claim operation.
func BuildClaimReward(p ClaimRewardPayload) (Operation, error) {
	if p.Actor == "" {
		return Operation{}, invalid("account", "is required")
	}
	if len(p.Rewards) == 0 {
		return Operation{}, invalid("rewards", "must not be empty")
	}
	for _, r := range p.Rewards {
		if r.Units < 0 {
			return Operation{}, invalid("rewards", "must not contain negative amounts")
		}
		if r.Symbol == "" {
			return Operation{}, invalid("rewards", "must carry a symbol")
		}
	}
	return marshalOp(KindClaimReward, p)
}
