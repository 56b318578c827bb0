package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/garden-fi/assistant-fulfillment/internal/domain/account"
	"github.com/garden-fi/assistant-fulfillment/internal/platform/dynamodb/client"
)

// SessionAccountRepository caches a conversation's canonical account list
// in DynamoDB so later turns in the same session skip the fetch and
// enrichment cycle. Expiry is enforced at read time; the table's TTL
// attribute handles physical deletion.
type SessionAccountRepository struct {
	client client.Client
	table  string
	ttl    time.Duration
	now    func() time.Time
}

// sessionAccountsItem is the stored row. Accounts are kept as a JSON
// blob because decimal balances have no natural DynamoDB number mapping
// that survives a round trip exactly.
type sessionAccountsItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Accounts  string `dynamodbav:"Accounts"`
	ExpiresAt int64  `dynamodbav:"ExpiresAt"`
}

// NewSessionAccountRepository creates a repository backed by the given table.
func NewSessionAccountRepository(dbClient client.Client, table string, ttl time.Duration) *SessionAccountRepository {
	return &SessionAccountRepository{
		client: dbClient,
		table:  table,
		ttl:    ttl,
		now:    time.Now,
	}
}

func sessionPK(sessionID string) string {
	return fmt.Sprintf("SESSION#%s", sessionID)
}

const accountsSK = "ACCOUNTS"

// Get returns the cached canonical accounts for a session. The second
// return is false on a miss or an expired entry.
func (r *SessionAccountRepository) Get(ctx context.Context, sessionID string) ([]account.CanonicalAccount, bool, error) {
	keyCondition := expression.Key("PK").Equal(expression.Value(sessionPK(sessionID))).
		And(expression.Key("SK").Equal(expression.Value(accountsSK)))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).Build()
	if err != nil {
		return nil, false, fmt.Errorf("building session cache query: %w", err)
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, false, fmt.Errorf("querying session cache: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, false, nil
	}

	var item sessionAccountsItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, false, fmt.Errorf("unmarshaling session cache item: %w", err)
	}
	if item.ExpiresAt <= r.now().Unix() {
		return nil, false, nil
	}

	var accounts []account.CanonicalAccount
	if err := json.Unmarshal([]byte(item.Accounts), &accounts); err != nil {
		return nil, false, fmt.Errorf("decoding cached accounts: %w", err)
	}
	return accounts, true, nil
}

// Put stores the canonical accounts for a session for one TTL window.
func (r *SessionAccountRepository) Put(ctx context.Context, sessionID string, accounts []account.CanonicalAccount) error {
	encoded, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("encoding accounts for cache: %w", err)
	}

	item, err := attributevalue.MarshalMap(sessionAccountsItem{
		PK:        sessionPK(sessionID),
		SK:        accountsSK,
		Accounts:  string(encoded),
		ExpiresAt: r.now().Add(r.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshaling session cache item: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("writing session cache: %w", err)
	}
	return nil
}

// Delete drops the cached accounts for a session.
func (r *SessionAccountRepository) Delete(ctx context.Context, sessionID string) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": sessionPK(sessionID),
		"SK": accountsSK,
	})
	if err != nil {
		return fmt.Errorf("marshaling session cache key: %w", err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("deleting session cache: %w", err)
	}
	return nil
}
