package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/coursehub/integration-api/internal/domain"
)

// OrderRepo provides typed DynamoDB operations for the orders table.
// PK: order_id. GSI: batch_transaction_id-index.
type OrderRepo struct {
	client    API
	tableName string
}

func NewOrderRepo(client API, tableName string) *OrderRepo {
	return &OrderRepo{client: client, tableName: tableName}
}

// Put inserts o and refuses to overwrite an existing order id.
func (r *OrderRepo) Put(ctx context.Context, o *domain.Order) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(order_id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("order %s already exists: %w", o.OrderID, domain.ErrBadRequest)
	}
	return err
}

// Update sets the given fields on an existing order and bumps updated_at.
func (r *OrderRepo) Update(ctx context.Context, orderID string, updates map[string]interface{}) error {
	fields := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		fields[k] = v
	}
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(fields)
	if err != nil {
		return err
	}
	ue.Values[":id"] = &types.AttributeValueMemberS{Value: orderID}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("order_id", orderID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("order_id = :id"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return err
}
