package ops

import "fmt"

// Authority is the key class the ledger requires for an operation. It is a
// design-time constant per mutation kind, never negotiated at runtime.
type Authority int

const (
	AuthorityPosting Authority = iota
	AuthorityActive
	AuthorityOwner
)

func (a Authority) String() string {
	switch a {
	case AuthorityPosting:
		return "posting"
	case AuthorityActive:
		return "active"
	case AuthorityOwner:
		return "owner"
	default:
		return fmt.Sprintf("authority(%d)", int(a))
	}
}

// authorityTable maps every mutation kind to its required authority.
var authorityTable = map[Kind]Authority{
	KindVote:        AuthorityPosting,
	KindComment:     AuthorityPosting,
	KindTransfer:    AuthorityActive,
	KindDelegate:    AuthorityActive,
	KindWitnessVote: AuthorityActive,
	KindSubscribe:   AuthorityPosting,
	KindSetRole:     AuthorityPosting,
	KindClaimReward: AuthorityPosting,
}

// RequiredAuthority returns the authority level for a mutation kind. The table
// is total over Kinds(); an unknown kind panics because it indicates a builder
// added without its table entries.
func RequiredAuthority(k Kind) Authority {
	a, ok := authorityTable[k]
	if !ok {
		panic(fmt.Sprintf("ops: no authority entry for kind %q", k))
	}
	return a
}

// InvalidationSet returns the ordered read-cache keys a successful mutation of
// this payload invalidates. The mapping is fixed per mutation kind and lives
// next to the builders so the two stay in sync.
func InvalidationSet(p Payload) []string {
	switch v := p.(type) {
	case VotePayload:
		return []string{
			ContentKey(v.Author, v.Permlink),
			AccountKey(v.Voter),
		}
	case CommentPayload:
		keys := []string{AccountKey(v.Author), AccountPostsKey(v.Author)}
		if v.IsReply() {
			keys = append([]string{ContentRepliesKey(v.ParentAuthor, v.ParentPermlink)}, keys...)
		}
		return keys
	case TransferPayload:
		return []string{AccountKey(v.From), AccountKey(v.To)}
	case DelegatePayload:
		return []string{AccountKey(v.Delegator), AccountKey(v.Delegatee)}
	case WitnessVotePayload:
		return []string{AccountKey(v.Actor), WitnessesKey()}
	case SubscribePayload:
		return []string{SubscriptionsKey(v.Actor), CommunityKey(v.Community)}
	case SetRolePayload:
		return []string{CommunityTeamKey(v.Community)}
	case ClaimRewardPayload:
		return []string{AccountKey(v.Actor)}
	default:
		return nil
	}
}

// Cache key constructors. Keys are resource-family + identity, matching the
// read-cache store contract.

func AccountKey(name string) string { return "account:" + name }

func AccountPostsKey(name string) string { return "account:" + name + "/posts" }

func SubscriptionsKey(name string) string { return "account:" + name + "/subscriptions" }

func ContentKey(author, permlink string) string { return "content:" + author + "/" + permlink }

func ContentRepliesKey(author, permlink string) string {
	return "content:" + author + "/" + permlink + "/replies"
}

func CommunityKey(name string) string { return "community:" + name }

func CommunityTeamKey(name string) string { return "community:" + name + "/team" }

func WitnessesKey() string { return "witnesses" }
