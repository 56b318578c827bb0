package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/garden-fi/assistant-fulfillment/internal/api/webhook"
	"github.com/garden-fi/assistant-fulfillment/internal/common/config"
	"github.com/garden-fi/assistant-fulfillment/internal/common/utils"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/account"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/enrichment"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/session"
)

// Fulfillment handler names registered with the assistant platform.
const (
	HandlerCreateUser     = "create_user"
	HandlerLoadAccounts   = "load_accounts"
	HandlerSelectAccount  = "select_account"
	HandlerCurrentBalance = "current_balance"
	HandlerSystemError    = "system_error"
)

// accountNameType is the recognition type overridden with the user's
// account names.
const accountNameType = "account_name"

const apology = "Oops something went wrong. Please try again."

// BankingBackend is the slice of the banking API the handlers consume.
type BankingBackend interface {
	Identity(ctx context.Context, bearerToken string) (session.UserInfo, error)
	TriggerFetch(ctx context.Context, bearerToken, sub string) (string, error)
	TaskStatus(ctx context.Context, bearerToken, sub, taskID string, sinceVersion int64) (enrichment.JobStatus, error)
	ListAccounts(ctx context.Context, bearerToken, sub string) ([]account.RawAccount, error)
}

// Result is the explicit outcome of one intent handler: spoken output,
// UI primitives, session writes, and the requested scene transition.
type Result struct {
	NextScene     session.Scene
	Speech        []string
	List          *webhook.List
	TypeOverrides []webhook.TypeOverride
	Patch         session.Patch
}

// FulfillmentHandler fulfills the assistant's banking intents.
type FulfillmentHandler struct {
	cfg     *config.Config
	backend BankingBackend
	waiter  *enrichment.Waiter
	cache   session.AccountCache // nil when no cache table is configured
	log     *slog.Logger
	now     func() time.Time
}

// NewFulfillmentHandler creates a new fulfillment handler.
func NewFulfillmentHandler(cfg *config.Config, backend BankingBackend, waiter *enrichment.Waiter, cache session.AccountCache, log *slog.Logger) *FulfillmentHandler {
	return &FulfillmentHandler{
		cfg:     cfg,
		backend: backend,
		waiter:  waiter,
		cache:   cache,
		log:     log,
		now:     time.Now,
	}
}

// Handle dispatches one webhook call to its intent handler and renders
// the result. Every error becomes a spoken message plus a graceful end;
// nothing propagates past this boundary.
func (h *FulfillmentHandler) Handle(ctx context.Context, req webhook.Request) webhook.Response {
	state, err := webhook.SessionState(req)
	if err != nil {
		h.log.Error("decoding session state", "handler", req.Handler.Name, "error", err)
		return h.render(state, h.failureResult())
	}

	var result Result
	switch req.Handler.Name {
	case HandlerCreateUser:
		result, err = h.CreateUser(ctx, req, state)
	case HandlerLoadAccounts:
		result, err = h.LoadAccounts(ctx, state)
	case HandlerSelectAccount:
		result, err = h.SelectAccount(ctx, state)
	case HandlerCurrentBalance:
		result, err = h.CurrentBalance(ctx, state)
	case HandlerSystemError:
		result, err = h.SystemError(ctx, state)
	default:
		h.log.Warn("unknown fulfillment handler", "handler", req.Handler.Name)
		result = h.failureResult()
	}

	if err != nil {
		h.log.Error("handler failed", "handler", req.Handler.Name, "error", err)
		result = h.failureResult()
	}
	return h.render(state, result)
}

func (h *FulfillmentHandler) render(state session.State, result Result) webhook.Response {
	resp := webhook.NewResponse(state.ID)
	for _, line := range result.Speech {
		resp.AddSpeech(line)
	}
	if result.List != nil {
		resp.SetList(*result.List)
	}
	for _, override := range result.TypeOverrides {
		resp.AddTypeOverride(override)
	}
	resp.ApplyPatch(result.Patch)
	resp.SetNextScene(result.NextScene)
	return *resp
}

// failureResult ends the conversation with an apology. Backend outages
// and poll timeouts are recoverable from the user's point of view; they
// can simply try again.
func (h *FulfillmentHandler) failureResult() Result {
	return Result{
		Speech:    []string{apology},
		NextScene: session.SceneEndConversation,
	}
}

// CreateUser logs the freshly linked user so support can correlate
// linking issues. No session state changes.
func (h *FulfillmentHandler) CreateUser(ctx context.Context, req webhook.Request, state session.State) (Result, error) {
	fields := []interface{}{
		"session", state.ID,
		"accountLinkingStatus", req.User.AccountLinkingStatus,
		"verificationStatus", req.User.VerificationStatus,
		"locale", req.User.Locale,
	}
	if state.BearerToken != "" {
		// Opaque tokens simply skip the claim fields.
		if claims, err := utils.PeekBearerClaims(state.BearerToken); err == nil {
			fields = append(fields, "sub", claims.Subject)
		}
	}
	h.log.Info("create_user", fields...)
	return Result{}, nil
}

// LoadAccounts resolves the user, waits for the backend's account
// refresh to finish, and stores the canonical account list in the
// session. Without a (live) bearer token, the user is routed to account
// linking; that is a flow, not an error.
func (h *FulfillmentHandler) LoadAccounts(ctx context.Context, state session.State) (Result, error) {
	if state.BearerToken == "" {
		return Result{NextScene: session.SceneAccountLinking}, nil
	}
	if claims, err := utils.PeekBearerClaims(state.BearerToken); err == nil && claims.Expired(h.now()) {
		h.log.Info("bearer token expired, re-linking", "session", state.ID)
		return Result{NextScene: session.SceneAccountLinking}, nil
	}

	var result Result

	userInfo := state.UserInfo
	if userInfo == nil {
		info, err := h.backend.Identity(ctx, state.BearerToken)
		if err != nil {
			return Result{}, err
		}
		userInfo = &info
		result.Patch.Set(session.ParamUserInfo, info)
	}

	if state.Accounts != nil {
		return result, nil
	}

	if h.cache != nil {
		cached, ok, err := h.cache.Get(ctx, state.ID)
		if err != nil {
			h.log.Warn("session cache read failed", "session", state.ID, "error", err)
		} else if ok {
			result.Patch.Set(session.ParamAccounts, cached)
			return result, nil
		}
	}

	h.log.Info("fetching data for user", "sub", userInfo.Sub)
	taskID, err := h.backend.TriggerFetch(ctx, state.BearerToken, userInfo.Sub)
	if err != nil {
		return Result{}, err
	}

	_, err = h.waiter.Wait(ctx, userInfo.Sub, taskID, func(ctx context.Context, taskID string, sinceVersion int64) (enrichment.JobStatus, error) {
		return h.backend.TaskStatus(ctx, state.BearerToken, userInfo.Sub, taskID, sinceVersion)
	})
	if err != nil {
		return Result{}, err
	}

	raw, err := h.backend.ListAccounts(ctx, state.BearerToken, userInfo.Sub)
	if err != nil {
		return Result{}, err
	}

	canonical, err := account.Normalize(raw, h.cfg.InstitutionID)
	if stderrors.Is(err, account.ErrNoEligibleAccounts) {
		result.Speech = append(result.Speech, "I was not able to find any accounts.")
		result.NextScene = session.SceneEndConversation
		return result, nil
	}
	if err != nil {
		return Result{}, err
	}

	result.Patch.Set(session.ParamAccounts, canonical)
	if h.cache != nil {
		if err := h.cache.Put(ctx, state.ID, canonical); err != nil {
			h.log.Warn("session cache write failed", "session", state.ID, "error", err)
		}
	}
	return result, nil
}

// SelectAccount asks which account the user means when more than one is
// on file, overriding the account_name type with recognition synonyms so
// spoken selections match. A single account needs no selection turn.
func (h *FulfillmentHandler) SelectAccount(ctx context.Context, state session.State) (Result, error) {
	if len(state.Accounts) <= 1 {
		return Result{}, nil
	}

	entries, items := webhook.AccountEntries(state.Accounts)
	result := Result{
		Speech: []string{fmt.Sprintf("Looks like you have %d accounts. Which one are you interested in?", len(state.Accounts))},
		TypeOverrides: []webhook.TypeOverride{{
			Name:    accountNameType,
			Mode:    webhook.TypeReplace,
			Synonym: &webhook.SynonymType{Entries: entries},
		}},
	}

	// Past 30 entries the list card gets unwieldy; voice-only selection
	// still works through the type override.
	if len(state.Accounts) < 30 {
		title := "Your Accounts"
		if state.UserInfo != nil && state.UserInfo.Name != "" {
			title = fmt.Sprintf("%s's Accounts", state.UserInfo.Name)
		}
		result.List = &webhook.List{Title: title, Items: items}
	}
	return result, nil
}

// CurrentBalance speaks the selected account's balance, preferring the
// available balance when the backend supplied one. With no explicit
// selection the first canonical account is used; a single-account session
// ends after the answer.
func (h *FulfillmentHandler) CurrentBalance(ctx context.Context, state session.State) (Result, error) {
	if len(state.Accounts) == 0 {
		h.log.Warn("current_balance with no accounts in session", "session", state.ID)
		return Result{Speech: []string{apology}}, nil
	}

	var result Result
	if len(state.Accounts) == 1 {
		result.NextScene = session.SceneEndConversation
	}

	selected := state.Accounts[0]
	if state.SelectedAccountKey != "" {
		id, ok := account.IDFromTypeKey(state.SelectedAccountKey)
		if !ok {
			h.log.Warn("malformed account selection key", "key", state.SelectedAccountKey)
			result.Speech = []string{apology}
			return result, nil
		}
		acct, err := account.FindByID(state.Accounts, id)
		if err != nil {
			h.log.Warn("selected account not in canonical list", "accountId", id)
			result.Speech = []string{apology}
			return result, nil
		}
		selected = acct
	}

	presented := account.PresentBalance(selected)
	result.Speech = []string{fmt.Sprintf("Your %s account has %s balance of %s.",
		account.DisplayName(selected), presented.Label, presented.Formatted())}
	return result, nil
}

// SystemError resets the account-linking slot so the user can retry
// after a system or network error during linking.
func (h *FulfillmentHandler) SystemError(ctx context.Context, state session.State) (Result, error) {
	h.log.Info("system_error", "session", state.ID)
	var result Result
	result.Patch.Set(session.ParamAccountLinkingSlot, "")
	return result, nil
}
