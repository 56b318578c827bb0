// Package webhook defines the conversation webhook wire format exchanged
// with the assistant host platform, and the translation between it and
// the session state handlers operate on.
package webhook

import "encoding/json"

// Request is the inbound fulfillment call. Session and user parameters
// are kept raw until a handler asks for a typed view.
type Request struct {
	Handler Handler `json:"handler"`
	Intent  Intent  `json:"intent"`
	Scene   Scene   `json:"scene"`
	Session Session `json:"session"`
	User    User    `json:"user"`
}

// Handler names the fulfillment handler the platform is invoking.
type Handler struct {
	Name string `json:"name"`
}

// Intent is the matched intent and its slot parameters.
type Intent struct {
	Name   string                     `json:"name"`
	Params map[string]json.RawMessage `json:"params,omitempty"`
}

// Scene is the active scene at the time of the call.
type Scene struct {
	Name string     `json:"name,omitempty"`
	Next *NextScene `json:"next,omitempty"`
}

// NextScene requests a scene transition.
type NextScene struct {
	Name string `json:"name"`
}

// Session carries the per-conversation state owned by the host platform.
type Session struct {
	ID            string                     `json:"id"`
	Params        map[string]json.RawMessage `json:"params,omitempty"`
	TypeOverrides []TypeOverride             `json:"typeOverrides,omitempty"`
	LanguageCode  string                     `json:"languageCode,omitempty"`
}

// User carries the account-linking state and user-scoped parameters.
type User struct {
	Params               map[string]json.RawMessage `json:"params,omitempty"`
	AccountLinkingStatus string                     `json:"accountLinkingStatus,omitempty"`
	VerificationStatus   string                     `json:"verificationStatus,omitempty"`
	Locale               string                     `json:"locale,omitempty"`
}

// Response is the outbound fulfillment payload.
type Response struct {
	Prompt  *Prompt          `json:"prompt,omitempty"`
	Scene   *SceneResponse   `json:"scene,omitempty"`
	Session *SessionResponse `json:"session,omitempty"`
}

// SceneResponse updates the scene, optionally transitioning to the next.
type SceneResponse struct {
	Name string     `json:"name,omitempty"`
	Next *NextScene `json:"next,omitempty"`
}

// SessionResponse writes session parameters and recognition type
// overrides back to the platform.
type SessionResponse struct {
	ID            string                 `json:"id"`
	Params        map[string]interface{} `json:"params,omitempty"`
	TypeOverrides []TypeOverride         `json:"typeOverrides,omitempty"`
}

// Prompt is the spoken and visual output of one turn.
type Prompt struct {
	Override    bool     `json:"override,omitempty"`
	FirstSimple *Simple  `json:"firstSimple,omitempty"`
	Content     *Content `json:"content,omitempty"`
}

// Simple is a plain spoken (and optionally displayed) message.
type Simple struct {
	Speech string `json:"speech"`
	Text   string `json:"text,omitempty"`
}

// Content holds the rich UI primitives a prompt may carry.
type Content struct {
	List *List `json:"list,omitempty"`
}

// List renders a selectable list card.
type List struct {
	Title string     `json:"title,omitempty"`
	Items []ListItem `json:"items"`
}

// ListItem references a type override entry by its key.
type ListItem struct {
	Key string `json:"key"`
}

// TypeOverride replaces the runtime entries of a recognition type so the
// platform can match spoken selections against session data.
type TypeOverride struct {
	Name    string       `json:"name"`
	Mode    string       `json:"mode"`
	Synonym *SynonymType `json:"synonym,omitempty"`
}

// TypeReplace fully replaces the entries of the overridden type.
const TypeReplace = "TYPE_REPLACE"

// SynonymType is the entry set of an overridden type.
type SynonymType struct {
	Entries []Entry `json:"entries"`
}

// Entry is one recognizable item with its synonyms and display card.
type Entry struct {
	Name     string        `json:"name"`
	Synonyms []string      `json:"synonyms"`
	Display  *EntryDisplay `json:"display,omitempty"`
}

// EntryDisplay is the visual form of an entry in a list card.
type EntryDisplay struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       *Image `json:"image,omitempty"`
}

// Image is a displayed image reference.
type Image struct {
	URL    string `json:"url"`
	Alt    string `json:"alt"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}
