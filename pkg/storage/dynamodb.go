package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ogulcanaydogan/spendwatch/pkg/model"
	"github.com/shopspring/decimal"
)

// DynamoDBAPI is the part of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoDB implements Storage on two DynamoDB tables. The expenses table is keyed by
// userId (hash) and expenseId (range); the users table by email.
type DynamoDB struct {
	client        DynamoDBAPI
	expensesTable string
	usersTable    string
}

// NewDynamoDB creates a store on an existing client.
func NewDynamoDB(client DynamoDBAPI, expensesTable, usersTable string) *DynamoDB {
	return &DynamoDB{
		client:        client,
		expensesTable: expensesTable,
		usersTable:    usersTable,
	}
}

// NewDynamoDBFromConfig builds the client from an AWS config. A non-empty endpoint
// overrides the service URL, e.g. for DynamoDB Local.
func NewDynamoDBFromConfig(cfg aws.Config, endpoint, expensesTable, usersTable string) *DynamoDB {
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewDynamoDB(client, expensesTable, usersTable)
}

func (d *DynamoDB) PutExpense(ctx context.Context, record *model.ExpenseRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	item, err := marshalExpense(record)
	if err != nil {
		return err
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.expensesTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put expense: %w", err)
	}
	return nil
}

func (d *DynamoDB) DeleteExpense(ctx context.Context, userID, expenseID string) (*model.ExpenseRecord, error) {
	out, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.expensesTable),
		Key: map[string]types.AttributeValue{
			"userId":    &types.AttributeValueMemberS{Value: userID},
			"expenseId": &types.AttributeValueMemberS{Value: expenseID},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, fmt.Errorf("delete expense: %w", err)
	}
	if len(out.Attributes) == 0 {
		return nil, fmt.Errorf("expense %q: %w", expenseID, ErrNotFound)
	}

	r, err := unmarshalExpense(out.Attributes)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *DynamoDB) QueryByUserAndDate(ctx context.Context, userID, date string) ([]model.ExpenseRecord, error) {
	return d.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.expensesTable),
		KeyConditionExpression: aws.String("userId = :userId"),
		FilterExpression:       aws.String("#date = :date"),
		ExpressionAttributeNames: map[string]string{
			"#date": "date",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
			":date":   &types.AttributeValueMemberS{Value: date},
		},
	})
}

func (d *DynamoDB) QueryExpenses(ctx context.Context, userID string, filter model.ExpenseFilter) ([]model.ExpenseRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.expensesTable),
		KeyConditionExpression: aws.String("userId = :userId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
		},
	}

	// DynamoDB rejects unused expression names, so #date is only set when referenced.
	var conditions []string
	if filter.Category != "" {
		conditions = append(conditions, "category = :category")
		input.ExpressionAttributeValues[":category"] = &types.AttributeValueMemberS{Value: filter.Category}
	}
	if filter.StartDate != "" {
		conditions = append(conditions, "#date >= :startDate")
		input.ExpressionAttributeValues[":startDate"] = &types.AttributeValueMemberS{Value: filter.StartDate}
	}
	if filter.EndDate != "" {
		conditions = append(conditions, "#date <= :endDate")
		input.ExpressionAttributeValues[":endDate"] = &types.AttributeValueMemberS{Value: filter.EndDate}
	}
	if filter.StartDate != "" || filter.EndDate != "" {
		input.ExpressionAttributeNames = map[string]string{"#date": "date"}
	}
	if len(conditions) > 0 {
		input.FilterExpression = aws.String(strings.Join(conditions, " AND "))
	}

	return d.query(ctx, input)
}

func (d *DynamoDB) ScanAll(ctx context.Context) ([]model.ExpenseRecord, error) {
	var records []model.ExpenseRecord
	p := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName: aws.String(d.expensesTable),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan expenses: %w", err)
		}
		for _, item := range page.Items {
			r, err := unmarshalExpense(item)
			if err != nil {
				return nil, err
			}
			records = append(records, r)
		}
	}
	return records, nil
}

func (d *DynamoDB) CreateUser(ctx context.Context, user *model.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	item, err := attributevalue.MarshalMap(userItem{
		Email:        user.Email,
		UserID:       user.UserID,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal user %q: %w", user.Email, err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.usersTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(email)"),
	})
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return fmt.Errorf("user %q: %w", user.Email, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (d *DynamoDB) GetUserByEmail(ctx context.Context, email string) (*model.UserAccount, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.usersTable),
		Key: map[string]types.AttributeValue{
			"email": &types.AttributeValueMemberS{Value: email},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}

	var it userItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &model.UserAccount{
		Email:        it.Email,
		UserID:       it.UserID,
		PasswordHash: it.PasswordHash,
		CreatedAt:    it.CreatedAt,
	}, nil
}

func (d *DynamoDB) Close() error { return nil }

func (d *DynamoDB) query(ctx context.Context, input *dynamodb.QueryInput) ([]model.ExpenseRecord, error) {
	var records []model.ExpenseRecord
	p := dynamodb.NewQueryPaginator(d.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query expenses: %w", err)
		}
		for _, item := range page.Items {
			r, err := unmarshalExpense(item)
			if err != nil {
				return nil, err
			}
			records = append(records, r)
		}
	}
	return records, nil
}

// expenseItem is the stored shape of an expense.
type expenseItem struct {
	UserID    string     `dynamodbav:"userId"`
	ExpenseID string     `dynamodbav:"expenseId"`
	Amount    amountAttr `dynamodbav:"amount"`
	Category  string     `dynamodbav:"category"`
	Date      string     `dynamodbav:"date"`
	Notes     string     `dynamodbav:"notes"`
	CreatedAt time.Time  `dynamodbav:"createdAt"`
}

type userItem struct {
	Email        string    `dynamodbav:"email"`
	UserID       string    `dynamodbav:"userId"`
	PasswordHash string    `dynamodbav:"password"`
	CreatedAt    time.Time `dynamodbav:"createdAt"`
}

// amountAttr stores a decimal as a DynamoDB number. String-typed amounts
// written by older clients are also read.
type amountAttr struct {
	decimal.Decimal
}

func (a amountAttr) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: a.String()}, nil
}

func (a *amountAttr) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var text string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		text = v.Value
	case *types.AttributeValueMemberS:
		text = v.Value
	default:
		return fmt.Errorf("amount: unsupported attribute type %T", av)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	a.Decimal = d
	return nil
}

func marshalExpense(r *model.ExpenseRecord) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(expenseItem{
		UserID:    r.UserID,
		ExpenseID: r.ExpenseID,
		Amount:    amountAttr{r.Amount},
		Category:  r.Category,
		Date:      r.Date,
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal expense %q: %w", r.ExpenseID, err)
	}
	return item, nil
}

func unmarshalExpense(item map[string]types.AttributeValue) (model.ExpenseRecord, error) {
	var it expenseItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return model.ExpenseRecord{}, fmt.Errorf("unmarshal expense: %w", err)
	}
	return model.ExpenseRecord{
		UserID:    it.UserID,
		ExpenseID: it.ExpenseID,
		Amount:    it.Amount.Decimal,
		Category:  it.Category,
		Date:      it.Date,
		Notes:     it.Notes,
		CreatedAt: it.CreatedAt,
	}, nil
}
