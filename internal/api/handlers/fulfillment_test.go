package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garden-fi/assistant-fulfillment/internal/api/webhook"
	"github.com/garden-fi/assistant-fulfillment/internal/common/config"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/account"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/enrichment"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/errors"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/session"
)

const testInstitutionID = "899f4398-106d-409a-9ed4-a72346778076"

// testBackend is an in-memory implementation of the banking backend.
type testBackend struct {
	identity    session.UserInfo
	identityErr error
	taskID      string
	fetchErr    error
	statuses    []enrichment.JobStatus
	accounts    []account.RawAccount
	listErr     error

	identityCalls int
	fetchCalls    int
	pollCalls     int
	listCalls     int
}

func (b *testBackend) Identity(ctx context.Context, bearerToken string) (session.UserInfo, error) {
	b.identityCalls++
	if b.identityErr != nil {
		return session.UserInfo{}, b.identityErr
	}
	return b.identity, nil
}

func (b *testBackend) TriggerFetch(ctx context.Context, bearerToken, sub string) (string, error) {
	b.fetchCalls++
	if b.fetchErr != nil {
		return "", b.fetchErr
	}
	return b.taskID, nil
}

func (b *testBackend) TaskStatus(ctx context.Context, bearerToken, sub, taskID string, sinceVersion int64) (enrichment.JobStatus, error) {
	status := b.statuses[b.pollCalls%len(b.statuses)]
	b.pollCalls++
	return status, nil
}

func (b *testBackend) ListAccounts(ctx context.Context, bearerToken, sub string) ([]account.RawAccount, error) {
	b.listCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.accounts, nil
}

// testCache is an in-memory session account cache.
type testCache struct {
	entries map[string][]account.CanonicalAccount
	puts    int
}

func newTestCache() *testCache {
	return &testCache{entries: make(map[string][]account.CanonicalAccount)}
}

func (c *testCache) Get(ctx context.Context, sessionID string) ([]account.CanonicalAccount, bool, error) {
	accounts, ok := c.entries[sessionID]
	return accounts, ok, nil
}

func (c *testCache) Put(ctx context.Context, sessionID string, accounts []account.CanonicalAccount) error {
	c.puts++
	c.entries[sessionID] = accounts
	return nil
}

func (c *testCache) Delete(ctx context.Context, sessionID string) error {
	delete(c.entries, sessionID)
	return nil
}

func newHandler(t *testing.T, backend BankingBackend, cache session.AccountCache) *FulfillmentHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{InstitutionID: testInstitutionID, MaxPollAttempts: 10}
	return NewFulfillmentHandler(cfg, backend, enrichment.NewWaiter(cfg.MaxPollAttempts, logger), cache, logger)
}

func rawParams(t *testing.T, params map[string]interface{}) map[string]json.RawMessage {
	t.Helper()
	raw := make(map[string]json.RawMessage, len(params))
	for key, value := range params {
		encoded, err := json.Marshal(value)
		require.NoError(t, err)
		raw[key] = encoded
	}
	return raw
}

func newRequest(t *testing.T, handlerName string, sessionParams, userParams map[string]interface{}) webhook.Request {
	t.Helper()
	return webhook.Request{
		Handler: webhook.Handler{Name: handlerName},
		Session: webhook.Session{ID: "session-1", Params: rawParams(t, sessionParams)},
		User:    webhook.User{Params: rawParams(t, userParams)},
	}
}

func rawAccount(id, name string, sortIndex *int64) account.RawAccount {
	return account.RawAccount{
		ID:                           id,
		Name:                         name,
		AccountType:                  "Deposit",
		Institution:                  account.Institution{ID: testInstitutionID},
		ContributesToAggregateTotals: true,
		SortIndex:                    sortIndex,
		Balance:                      decimal.NewFromInt(100),
	}
}

func terminalStatuses() []enrichment.JobStatus {
	return []enrichment.JobStatus{
		{Version: 1},
		{Version: 2, Events: []enrichment.Event{{Type: enrichment.EventTaskEnded}}},
	}
}

func TestLoadAccountsWithoutTokenRoutesToLinking(t *testing.T) {
	handler := newHandler(t, &testBackend{}, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerLoadAccounts, nil, nil))

	require.NotNil(t, resp.Scene)
	require.NotNil(t, resp.Scene.Next)
	assert.Equal(t, string(session.SceneAccountLinking), resp.Scene.Next.Name)
	assert.Nil(t, resp.Prompt)
}

func TestLoadAccountsFullFlow(t *testing.T) {
	two := int64(2)
	backend := &testBackend{
		identity: session.UserInfo{Sub: "user-1", Name: "Jamie"},
		taskID:   "task-1",
		statuses: terminalStatuses(),
		accounts: []account.RawAccount{
			rawAccount("b", "Savings", nil),
			rawAccount("a", "Checking", &two),
		},
	}
	cache := newTestCache()
	handler := newHandler(t, backend, cache)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerLoadAccounts, nil,
		map[string]interface{}{"bearerToken": "token-1"}))

	assert.Equal(t, 1, backend.identityCalls)
	assert.Equal(t, 1, backend.fetchCalls)
	assert.Equal(t, 2, backend.pollCalls)
	assert.Equal(t, 1, backend.listCalls)

	require.NotNil(t, resp.Session)
	assert.Equal(t, "session-1", resp.Session.ID)

	info, ok := resp.Session.Params[session.ParamUserInfo].(session.UserInfo)
	require.True(t, ok)
	assert.Equal(t, "user-1", info.Sub)

	accounts, ok := resp.Session.Params[session.ParamAccounts].([]account.CanonicalAccount)
	require.True(t, ok)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a", accounts[0].ID, "assigned sortIndex precedes nil")
	assert.Equal(t, "b", accounts[1].ID)

	assert.Equal(t, 1, cache.puts, "canonical list cached for the session")
	assert.Nil(t, resp.Scene, "no transition on success")
}

func TestLoadAccountsSkipsBackendWhenSessionHasAccounts(t *testing.T) {
	backend := &testBackend{}
	handler := newHandler(t, backend, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerLoadAccounts,
		map[string]interface{}{
			session.ParamUserInfo: session.UserInfo{Sub: "user-1"},
			session.ParamAccounts: []account.CanonicalAccount{{ID: "a", Name: "Checking"}},
		},
		map[string]interface{}{"bearerToken": "token-1"}))

	assert.Zero(t, backend.identityCalls)
	assert.Zero(t, backend.fetchCalls)
	assert.Zero(t, backend.listCalls)
	assert.Nil(t, resp.Prompt)
}

func TestLoadAccountsServesFromCache(t *testing.T) {
	backend := &testBackend{identity: session.UserInfo{Sub: "user-1"}}
	cache := newTestCache()
	cache.entries["session-1"] = []account.CanonicalAccount{{ID: "cached", Name: "Checking"}}
	handler := newHandler(t, backend, cache)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerLoadAccounts, nil,
		map[string]interface{}{"bearerToken": "token-1"}))

	assert.Zero(t, backend.fetchCalls, "cache hit skips the fetch cycle")
	accounts, ok := resp.Session.Params[session.ParamAccounts].([]account.CanonicalAccount)
	require.True(t, ok)
	require.Len(t, accounts, 1)
	assert.Equal(t, "cached", accounts[0].ID)
}

func TestLoadAccountsNoEligibleAccounts(t *testing.T) {
	hidden := rawAccount("a", "Hidden", nil)
	hidden.Hidden = true
	backend := &testBackend{
		identity: session.UserInfo{Sub: "user-1"},
		taskID:   "task-1",
		statuses: terminalStatuses(),
		accounts: []account.RawAccount{hidden},
	}
	handler := newHandler(t, backend, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerLoadAccounts, nil,
		map[string]interface{}{"bearerToken": "token-1"}))

	require.NotNil(t, resp.Prompt)
	require.NotNil(t, resp.Prompt.FirstSimple)
	assert.Equal(t, "I was not able to find any accounts.", resp.Prompt.FirstSimple.Speech)
	require.NotNil(t, resp.Scene)
	assert.Equal(t, string(session.SceneEndConversation), resp.Scene.Next.Name)
}

func TestLoadAccountsBackendFailureEndsGracefully(t *testing.T) {
	backend := &testBackend{
		identityErr: errors.NewBackendUnavailableError("resolving user identity", 503, nil, ""),
	}
	handler := newHandler(t, backend, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerLoadAccounts, nil,
		map[string]interface{}{"bearerToken": "token-1"}))

	require.NotNil(t, resp.Prompt)
	assert.Equal(t, "Oops something went wrong. Please try again.", resp.Prompt.FirstSimple.Speech)
	require.NotNil(t, resp.Scene)
	assert.Equal(t, string(session.SceneEndConversation), resp.Scene.Next.Name)
}

func TestSelectAccountSingleAccountIsSilent(t *testing.T) {
	handler := newHandler(t, &testBackend{}, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerSelectAccount,
		map[string]interface{}{
			session.ParamAccounts: []account.CanonicalAccount{{ID: "a", Name: "Checking"}},
		}, nil))

	assert.Nil(t, resp.Prompt)
	assert.Nil(t, resp.Scene)
}

func TestSelectAccountBuildsOverrideAndList(t *testing.T) {
	handler := newHandler(t, &testBackend{}, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerSelectAccount,
		map[string]interface{}{
			session.ParamUserInfo: session.UserInfo{Sub: "user-1", Name: "Jamie"},
			session.ParamAccounts: []account.CanonicalAccount{
				{ID: "a-1", Name: "Checking", Type: "Checking"},
				{ID: "b-2", Name: "Savings", Type: "Savings"},
			},
		}, nil))

	require.NotNil(t, resp.Prompt)
	assert.Equal(t, "Looks like you have 2 accounts. Which one are you interested in?", resp.Prompt.FirstSimple.Speech)

	require.NotNil(t, resp.Session)
	require.Len(t, resp.Session.TypeOverrides, 1)
	override := resp.Session.TypeOverrides[0]
	assert.Equal(t, "account_name", override.Name)
	assert.Equal(t, webhook.TypeReplace, override.Mode)
	require.NotNil(t, override.Synonym)
	require.Len(t, override.Synonym.Entries, 2)
	assert.Equal(t, "ACCOUNT_a_1", override.Synonym.Entries[0].Name)
	assert.Contains(t, override.Synonym.Entries[0].Synonyms, "Checking")
	assert.Equal(t, "Checking Account", override.Synonym.Entries[0].Display.Description)

	require.NotNil(t, resp.Prompt.Content)
	require.NotNil(t, resp.Prompt.Content.List)
	assert.Equal(t, "Jamie's Accounts", resp.Prompt.Content.List.Title)
	require.Len(t, resp.Prompt.Content.List.Items, 2)
	assert.Equal(t, "ACCOUNT_a_1", resp.Prompt.Content.List.Items[0].Key)
}

func TestSelectAccountLargeListSkipsCard(t *testing.T) {
	accounts := make([]account.CanonicalAccount, 30)
	for i := range accounts {
		accounts[i] = account.CanonicalAccount{ID: string(rune('a' + i)), Name: "Account", Type: "Deposit"}
	}
	handler := newHandler(t, &testBackend{}, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerSelectAccount,
		map[string]interface{}{session.ParamAccounts: accounts}, nil))

	require.NotNil(t, resp.Prompt)
	assert.Nil(t, resp.Prompt.Content, "30 or more accounts: voice-only selection")
	require.NotNil(t, resp.Session)
	assert.Len(t, resp.Session.TypeOverrides, 1)
}

func TestCurrentBalanceSingleAccount(t *testing.T) {
	available := decimal.NewFromFloat(150.00)
	handler := newHandler(t, &testBackend{}, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerCurrentBalance,
		map[string]interface{}{
			session.ParamAccounts: []account.CanonicalAccount{{
				ID:               "a",
				Name:             "Checking",
				Balance:          decimal.NewFromFloat(200.00),
				AvailableBalance: &available,
			}},
		}, nil))

	require.NotNil(t, resp.Prompt)
	assert.Equal(t, "Your Checking account has an available balance of $150.00.", resp.Prompt.FirstSimple.Speech)
	require.NotNil(t, resp.Scene)
	assert.Equal(t, string(session.SceneEndConversation), resp.Scene.Next.Name, "single account ends the conversation")
}

func TestCurrentBalanceSelectedAccount(t *testing.T) {
	handler := newHandler(t, &testBackend{}, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerCurrentBalance,
		map[string]interface{}{
			session.ParamAccounts: []account.CanonicalAccount{
				{ID: "a-1", Name: "Checking", Balance: decimal.NewFromFloat(200.00)},
				{ID: "b-2", Name: "Savings", Balance: decimal.NewFromFloat(75.5)},
			},
			session.ParamSelectedAccount: "ACCOUNT_b_2",
		}, nil))

	require.NotNil(t, resp.Prompt)
	assert.Equal(t, "Your Savings account has a current balance of $75.50.", resp.Prompt.FirstSimple.Speech)
	assert.Nil(t, resp.Scene, "multiple accounts keep the conversation open")
}

func TestCurrentBalanceUnknownSelection(t *testing.T) {
	handler := newHandler(t, &testBackend{}, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerCurrentBalance,
		map[string]interface{}{
			session.ParamAccounts: []account.CanonicalAccount{
				{ID: "a-1", Name: "Checking", Balance: decimal.NewFromFloat(200.00)},
				{ID: "b-2", Name: "Savings", Balance: decimal.NewFromFloat(75.5)},
			},
			session.ParamSelectedAccount: "ACCOUNT_missing",
		}, nil))

	require.NotNil(t, resp.Prompt)
	assert.Equal(t, "Oops something went wrong. Please try again.", resp.Prompt.FirstSimple.Speech)
}

func TestCurrentBalanceNoAccounts(t *testing.T) {
	handler := newHandler(t, &testBackend{}, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerCurrentBalance, nil, nil))

	require.NotNil(t, resp.Prompt)
	assert.Equal(t, "Oops something went wrong. Please try again.", resp.Prompt.FirstSimple.Speech)
}

func TestSystemErrorResetsLinkingSlot(t *testing.T) {
	handler := newHandler(t, &testBackend{}, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerSystemError, nil, nil))

	require.NotNil(t, resp.Session)
	assert.Equal(t, "", resp.Session.Params[session.ParamAccountLinkingSlot])
}

func TestCreateUserProducesNoOutput(t *testing.T) {
	handler := newHandler(t, &testBackend{}, nil)

	resp := handler.Handle(context.Background(), newRequest(t, HandlerCreateUser, nil,
		map[string]interface{}{"bearerToken": "opaque-token"}))

	assert.Nil(t, resp.Prompt)
	assert.Nil(t, resp.Scene)
}

func TestUnknownHandlerEndsGracefully(t *testing.T) {
	handler := newHandler(t, &testBackend{}, nil)

	resp := handler.Handle(context.Background(), newRequest(t, "no_such_handler", nil, nil))

	require.NotNil(t, resp.Prompt)
	assert.Equal(t, "Oops something went wrong. Please try again.", resp.Prompt.FirstSimple.Speech)
	require.NotNil(t, resp.Scene)
	assert.Equal(t, string(session.SceneEndConversation), resp.Scene.Next.Name)
}
