// Package pipeline wires the scanners, agent loop, validator, and
// cross-reference engine into one control flow: per candidate repo,
// walk+scan+dedup, optionally investigate and validate, then
// cross-reference everything against the narratives that surfaced the
// repos in the first place.
package pipeline

import (
	"strings"

	"github.com/solguard/solguard/internal/domain"
)

// categoryKeywords maps substrings commonly found in a Solana program
// repo's name to the protocol category whose focus areas best fit it. Checked in declaration order; the first match wins.
var categoryKeywords = []struct {
	keyword  string
	category domain.ProtocolCategory
}{
	{"swap", domain.ProtocolDex},
	{"dex", domain.ProtocolDex},
	{"amm", domain.ProtocolDex},
	{"lend", domain.ProtocolLending},
	{"borrow", domain.ProtocolLending},
	{"credit", domain.ProtocolLending},
	{"shield", domain.ProtocolPrivacy},
	{"privacy", domain.ProtocolPrivacy},
	{"mixer", domain.ProtocolPrivacy},
	{"zk", domain.ProtocolPrivacy},
	{"stake", domain.ProtocolStaking},
	{"staking", domain.ProtocolStaking},
	{"validator", domain.ProtocolStaking},
	{"nft", domain.ProtocolNft},
	{"metaplex", domain.ProtocolNft},
	{"collectible", domain.ProtocolNft},
}

// ClassifyRepo infers a repo's protocol category from its name. This is
// a heuristic, best-effort classification — repos whose purpose isn't
// legible from the name fall back to ProtocolOther, which still gets a
// general trust-model review rather than no focus areas at all.
func ClassifyRepo(repo domain.RepoHandle) domain.ProtocolCategory {
	name := strings.ToLower(repo.Name)
	for _, ck := range categoryKeywords {
		if strings.Contains(name, ck.keyword) {
			return ck.category
		}
	}
	return domain.ProtocolOther
}
