package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/garden-fi/assistant-fulfillment/internal/domain/account"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/session"
)

// bearerTokenParam is written to user storage by the account-linking flow.
const bearerTokenParam = "bearerToken"

// SessionState builds the typed session view a handler works from out of
// the raw request parameters. Malformed persisted parameters are reported
// rather than silently dropped; the platform round-trips what we wrote,
// so a decode failure means the stored state is corrupt.
func SessionState(req Request) (session.State, error) {
	state := session.State{ID: req.Session.ID}

	if raw, ok := req.User.Params[bearerTokenParam]; ok {
		if err := json.Unmarshal(raw, &state.BearerToken); err != nil {
			return session.State{}, fmt.Errorf("decoding %s user param: %w", bearerTokenParam, err)
		}
	}

	if raw, ok := req.Session.Params[session.ParamUserInfo]; ok {
		var info session.UserInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return session.State{}, fmt.Errorf("decoding %s session param: %w", session.ParamUserInfo, err)
		}
		state.UserInfo = &info
	}

	if raw, ok := req.Session.Params[session.ParamAccounts]; ok {
		if err := json.Unmarshal(raw, &state.Accounts); err != nil {
			return session.State{}, fmt.Errorf("decoding %s session param: %w", session.ParamAccounts, err)
		}
	}

	if raw, ok := req.Session.Params[session.ParamSelectedAccount]; ok {
		if err := json.Unmarshal(raw, &state.SelectedAccountKey); err != nil {
			return session.State{}, fmt.Errorf("decoding %s session param: %w", session.ParamSelectedAccount, err)
		}
	}

	return state, nil
}

// NewResponse starts an outbound payload for the given conversation.
func NewResponse(sessionID string) *Response {
	return &Response{
		Session: &SessionResponse{ID: sessionID},
	}
}

// AddSpeech appends a spoken line to the prompt.
func (r *Response) AddSpeech(text string) {
	if r.Prompt == nil {
		r.Prompt = &Prompt{}
	}
	if r.Prompt.FirstSimple == nil {
		r.Prompt.FirstSimple = &Simple{Speech: text}
		return
	}
	r.Prompt.FirstSimple.Speech += " " + text
}

// SetList attaches a list card to the prompt.
func (r *Response) SetList(list List) {
	if r.Prompt == nil {
		r.Prompt = &Prompt{}
	}
	r.Prompt.Content = &Content{List: &list}
}

// SetNextScene requests a transition once this turn completes.
func (r *Response) SetNextScene(scene session.Scene) {
	if scene == session.SceneNone {
		return
	}
	r.Scene = &SceneResponse{Next: &NextScene{Name: string(scene)}}
}

// ApplyPatch writes the handler's session parameter updates into the
// response, later writes winning over earlier ones.
func (r *Response) ApplyPatch(patch session.Patch) {
	if patch.Empty() {
		return
	}
	if r.Session == nil {
		r.Session = &SessionResponse{}
	}
	if r.Session.Params == nil {
		r.Session.Params = make(map[string]interface{}, len(patch.Params))
	}
	for key, value := range patch.Params {
		r.Session.Params[key] = value
	}
}

// AddTypeOverride registers a recognition type replacement for this
// session.
func (r *Response) AddTypeOverride(override TypeOverride) {
	if r.Session == nil {
		r.Session = &SessionResponse{}
	}
	r.Session.TypeOverrides = append(r.Session.TypeOverrides, override)
}

// AccountEntries builds the recognition entries and list items for a
// canonical account list. The 1x1 transparent image keeps list cards
// uniform when the platform insists on an image per row.
func AccountEntries(accounts []account.CanonicalAccount) ([]Entry, []ListItem) {
	entries := make([]Entry, 0, len(accounts))
	items := make([]ListItem, 0, len(accounts))
	for _, acct := range accounts {
		key := account.TypeKey(acct)
		entries = append(entries, Entry{
			Name:     key,
			Synonyms: account.RecognitionSynonyms(acct),
			Display: &EntryDisplay{
				Title:       account.DisplayName(acct),
				Description: fmt.Sprintf("%s Account", acct.Type),
				Image:       transparentImage(),
			},
		})
		items = append(items, ListItem{Key: key})
	}
	return entries, items
}

func transparentImage() *Image {
	return &Image{
		URL:    "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7",
		Alt:    "",
		Height: 1,
		Width:  1,
	}
}
