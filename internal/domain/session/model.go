package session

import (
	"context"

	"github.com/garden-fi/assistant-fulfillment/internal/domain/account"
)

// Scene names the conversation scene a handler transitions to. The host
// platform owns the scene graph; these are the transitions we request.
type Scene string

const (
	// SceneNone leaves the current scene unchanged.
	SceneNone Scene = ""
	// SceneAccountLinking sends the user through account linking.
	SceneAccountLinking Scene = "account_linking"
	// SceneEndConversation ends the interaction.
	SceneEndConversation Scene = "actions.scene.END_CONVERSATION"
)

// Parameter keys persisted in the conversation session.
const (
	ParamUserInfo           = "userInfo"
	ParamAccounts           = "accounts"
	ParamSelectedAccount    = "account_name"
	ParamAccountLinkingSlot = "AccountLinkingSlot"
)

// UserInfo is the identity the backend resolves from a bearer token.
type UserInfo struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
}

// State is the immutable view of one conversation's session a handler
// works from. It is rebuilt from the inbound webhook request on every
// turn; handlers never mutate it, they return a Patch instead.
type State struct {
	ID          string
	BearerToken string
	UserInfo    *UserInfo
	Accounts    []account.CanonicalAccount
	// SelectedAccountKey is the recognition type key the user's spoken
	// selection resolved to, when any.
	SelectedAccountKey string
}

// Patch is the set of session parameter writes a handler requests. The
// webhook layer applies it to the outbound response; later writes to the
// same key win.
type Patch struct {
	Params map[string]interface{}
}

// Set records one parameter write.
func (p *Patch) Set(key string, value interface{}) {
	if p.Params == nil {
		p.Params = make(map[string]interface{})
	}
	p.Params[key] = value
}

// Empty reports whether the patch carries no writes.
func (p Patch) Empty() bool {
	return len(p.Params) == 0
}

// Merge folds another patch into this one, last write wins.
func (p *Patch) Merge(other Patch) {
	for key, value := range other.Params {
		p.Set(key, value)
	}
}

// AccountCache stores a conversation's canonical account list so repeat
// turns skip the fetch and enrichment cycle. Implementations expire
// entries after the session cache TTL.
type AccountCache interface {
	Get(ctx context.Context, sessionID string) ([]account.CanonicalAccount, bool, error)
	Put(ctx context.Context, sessionID string, accounts []account.CanonicalAccount) error
	Delete(ctx context.Context, sessionID string) error
}
