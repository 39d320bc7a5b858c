package cache

import (
	"encoding/json"
	"fmt"

	"github.com/Verse-Network/mutation_layer/ops"
)

// Default optimistic patches. Each one derives the new cached value from the
// old value and the payload for the keys it understands; other keys fall
// back to invalidation.

func registerDefaultPatches(a *Adapter) {
	a.RegisterPatch(ops.KindVote, patchVote)
	a.RegisterPatch(ops.KindSubscribe, patchSubscribe)
	a.RegisterPatch(ops.KindComment, patchComment)
}

// patchVote bumps the cached vote tally on the voted content.
func patchVote(key string, old []byte, payload ops.Payload) ([]byte, bool, error) {
	p, ok := payload.(ops.VotePayload)
	if !ok {
		return nil, false, fmt.Errorf("vote patch got %T", payload)
	}
	if key != ops.ContentKey(p.Author, p.Permlink) || old == nil {
		return nil, false, nil
	}

	var content map[string]any
	if err := json.Unmarshal(old, &content); err != nil {
		return nil, false, fmt.Errorf("decode cached content: %w", err)
	}

	votes, _ := content["net_votes"].(float64)
	if p.Weight > 0 {
		votes++
	} else if p.Weight < 0 {
		votes--
	}
	content["net_votes"] = votes

	voters, _ := content["active_voters"].([]any)
	content["active_voters"] = appendUnique(voters, p.Voter)

	patched, err := json.Marshal(content)
	if err != nil {
		return nil, false, err
	}
	return patched, true, nil
}

// patchSubscribe adds or removes the community in the cached subscription
// list.
func patchSubscribe(key string, old []byte, payload ops.Payload) ([]byte, bool, error) {
	p, ok := payload.(ops.SubscribePayload)
	if !ok {
		return nil, false, fmt.Errorf("subscribe patch got %T", payload)
	}
	if key != ops.SubscriptionsKey(p.Actor) {
		return nil, false, nil
	}

	var subs []string
	if old != nil {
		if err := json.Unmarshal(old, &subs); err != nil {
			return nil, false, fmt.Errorf("decode cached subscriptions: %w", err)
		}
	}

	next := subs[:0:0]
	for _, c := range subs {
		if c != p.Community {
			next = append(next, c)
		}
	}
	if p.Subscribe {
		next = append(next, p.Community)
	}

	patched, err := json.Marshal(next)
	if err != nil {
		return nil, false, err
	}
	return patched, true, nil
}

// patchComment appends the new reply reference to the cached reply list of
// the parent. Root posts have no cached parent to patch.
func patchComment(key string, old []byte, payload ops.Payload) ([]byte, bool, error) {
	p, ok := payload.(ops.CommentPayload)
	if !ok {
		return nil, false, fmt.Errorf("comment patch got %T", payload)
	}
	if !p.IsReply() || key != ops.ContentRepliesKey(p.ParentAuthor, p.ParentPermlink) {
		return nil, false, nil
	}

	var replies []map[string]string
	if old != nil {
		if err := json.Unmarshal(old, &replies); err != nil {
			return nil, false, fmt.Errorf("decode cached replies: %w", err)
		}
	}

	for _, r := range replies {
		if r["author"] == p.Author && r["permlink"] == p.Permlink {
			// Already present, e.g. a duplicate broadcast settling twice.
			return old, true, nil
		}
	}
	replies = append(replies, map[string]string{
		"author":   p.Author,
		"permlink": p.Permlink,
	})

	patched, err := json.Marshal(replies)
	if err != nil {
		return nil, false, err
	}
	return patched, true, nil
}

func appendUnique(values []any, v string) []any {
	for _, existing := range values {
		if s, ok := existing.(string); ok && s == v {
			return values
		}
	}
	return append(values, v)
}
