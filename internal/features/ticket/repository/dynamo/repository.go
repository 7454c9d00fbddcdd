package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cvelasquez94/raffle-fast/internal/features/ticket/models"
	"github.com/cvelasquez94/raffle-fast/internal/features/ticket/repository"
)

// DynamoDBAPI is the subset of the DynamoDB client the repository uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

type dynamoTicketRepository struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoRepository(client DynamoDBAPI, tableName string) repository.TicketRepository {
	return &dynamoTicketRepository{client: client, tableName: tableName}
}

// ticketItem is the DynamoDB shape of a ticket. raffle_id is the partition
// key and number the sort key.
type ticketItem struct {
	RaffleID string `dynamodbav:"raffle_id"`
	Number   int    `dynamodbav:"number"`
	Status   string `dynamodbav:"status"`

	BuyerName  string `dynamodbav:"buyer_name,omitempty"`
	BuyerEmail string `dynamodbav:"buyer_email,omitempty"`
	BuyerPhone string `dynamodbav:"buyer_phone,omitempty"`

	ReservedAt    *time.Time `dynamodbav:"reserved_at,omitempty"`
	ReservedUntil *time.Time `dynamodbav:"reserved_until,omitempty"`
	SoldAt        *time.Time `dynamodbav:"sold_at,omitempty"`

	PaymentLink      string `dynamodbav:"payment_link,omitempty"`
	PaymentReference string `dynamodbav:"payment_reference,omitempty"`
	PaymentStatus    string `dynamodbav:"payment_status,omitempty"`

	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

func (r *dynamoTicketRepository) key(raffleID string, number int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"raffle_id": &types.AttributeValueMemberS{Value: raffleID},
		"number":    &types.AttributeValueMemberN{Value: strconv.Itoa(number)},
	}
}

func (r *dynamoTicketRepository) CreateBatch(ctx context.Context, raffleID string, total int) error {
	now := time.Now()

	// BatchWriteItem accepts at most 25 requests per call.
	const chunkSize = 25
	for start := 1; start <= total; start += chunkSize {
		end := start + chunkSize - 1
		if end > total {
			end = total
		}

		var requests []types.WriteRequest
		for n := start; n <= end; n++ {
			item, err := attributevalue.MarshalMap(ticketItem{
				RaffleID:  raffleID,
				Number:    n,
				Status:    string(models.StatusAvailable),
				CreatedAt: now,
				UpdatedAt: now,
			})
			if err != nil {
				return fmt.Errorf("failed to marshal ticket %d: %w", n, err)
			}
			requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}

		_, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.tableName: requests},
		})
		if err != nil {
			return fmt.Errorf("failed to create tickets: %w", err)
		}
	}

	return nil
}

func (r *dynamoTicketRepository) GetByNumber(ctx context.Context, raffleID string, number int) (*models.Ticket, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.key(raffleID, number),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if out.Item == nil {
		return nil, repository.ErrTicketNotFound
	}

	var item ticketItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket: %w", err)
	}

	return item.toModel(), nil
}

func (r *dynamoTicketRepository) ListByRaffle(ctx context.Context, raffleID string) ([]*models.Ticket, error) {
	var tickets []*models.Ticket

	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("raffle_id = :raffle_id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":raffle_id": &types.AttributeValueMemberS{Value: raffleID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query tickets: %w", err)
		}

		var items []ticketItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tickets: %w", err)
		}
		for i := range items {
			tickets = append(tickets, items[i].toModel())
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return tickets, nil
}

func (r *dynamoTicketRepository) CountByStatus(ctx context.Context, raffleID string) (*models.StatusCounts, error) {
	tickets, err := r.ListByRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}

	counts := &models.StatusCounts{}
	for _, t := range tickets {
		switch t.Status {
		case models.StatusAvailable:
			counts.Available++
		case models.StatusReserved:
			counts.Reserved++
		case models.StatusSold:
			counts.Sold++
		}
	}

	return counts, nil
}

// UpdateStatus rewrites every mutable attribute in one UpdateItem call. The
// expected previous status becomes a ConditionExpression, which DynamoDB
// evaluates atomically; a ConditionalCheckFailedException is a lost race, not
// an error.
func (r *dynamoTicketRepository) UpdateStatus(ctx context.Context, raffleID string, number int, expected models.Status, update models.Update) (bool, error) {
	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(update.Status)},
	}

	set := "SET #status = :status, updated_at = :updated_at"
	remove := ""

	updatedAtAV, err := attributevalue.Marshal(time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to marshal timestamp: %w", err)
	}
	values[":updated_at"] = updatedAtAV

	optionalStrings := []struct {
		attr  string
		value string
	}{
		{"buyer_name", update.BuyerName},
		{"buyer_email", update.BuyerEmail},
		{"buyer_phone", update.BuyerPhone},
		{"payment_link", update.PaymentLink},
		{"payment_reference", update.PaymentReference},
		{"payment_status", update.PaymentStatus},
	}
	optionalTimes := []struct {
		attr  string
		value *time.Time
	}{
		{"reserved_at", update.ReservedAt},
		{"reserved_until", update.ReservedUntil},
		{"sold_at", update.SoldAt},
	}

	appendRemove := func(attr string) {
		if remove == "" {
			remove = " REMOVE "
		} else {
			remove += ", "
		}
		remove += "#" + attr
		names["#"+attr] = attr
	}

	for _, f := range optionalStrings {
		if f.value == "" {
			appendRemove(f.attr)
			continue
		}
		set += fmt.Sprintf(", #%s = :%s", f.attr, f.attr)
		names["#"+f.attr] = f.attr
		values[":"+f.attr] = &types.AttributeValueMemberS{Value: f.value}
	}
	for _, f := range optionalTimes {
		if f.value == nil {
			appendRemove(f.attr)
			continue
		}
		av, err := attributevalue.Marshal(*f.value)
		if err != nil {
			return false, fmt.Errorf("failed to marshal %s: %w", f.attr, err)
		}
		set += fmt.Sprintf(", #%s = :%s", f.attr, f.attr)
		names["#"+f.attr] = f.attr
		values[":"+f.attr] = av
	}

	// The condition also guards against creating phantom items: an owner
	// override on a missing ticket must fail, not upsert.
	condition := "attribute_exists(raffle_id)"
	if expected != "" {
		condition = "#status = :expected"
		values[":expected"] = &types.AttributeValueMemberS{Value: string(expected)}
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       r.key(raffleID, number),
		UpdateExpression:          aws.String(set + remove),
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return false, nil
		}
		return false, fmt.Errorf("failed to update ticket status: %w", err)
	}

	return true, nil
}

func (r *dynamoTicketRepository) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	nowAV, err := attributevalue.Marshal(now)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	released := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(r.tableName),
			FilterExpression: aws.String("#status = :reserved AND reserved_until < :now"),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":reserved": &types.AttributeValueMemberS{Value: string(models.StatusReserved)},
				":now":      nowAV,
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return released, fmt.Errorf("failed to scan expired tickets: %w", err)
		}

		var items []ticketItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return released, fmt.Errorf("failed to unmarshal expired tickets: %w", err)
		}

		for _, item := range items {
			// Re-checked per item: the reservation may have been promoted to
			// sold between the scan and this write.
			ok, err := r.UpdateStatus(ctx, item.RaffleID, item.Number, models.StatusReserved, models.AvailableUpdate())
			if err != nil {
				return released, err
			}
			if ok {
				released++
			}
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return released, nil
}

func (r *dynamoTicketRepository) DeleteByRaffle(ctx context.Context, raffleID string) error {
	tickets, err := r.ListByRaffle(ctx, raffleID)
	if err != nil {
		return err
	}

	const chunkSize = 25
	for start := 0; start < len(tickets); start += chunkSize {
		end := start + chunkSize
		if end > len(tickets) {
			end = len(tickets)
		}

		var requests []types.WriteRequest
		for _, t := range tickets[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: r.key(t.RaffleID, t.Number)},
			})
		}

		_, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.tableName: requests},
		})
		if err != nil {
			return fmt.Errorf("failed to delete tickets: %w", err)
		}
	}

	return nil
}

func (i *ticketItem) toModel() *models.Ticket {
	return &models.Ticket{
		RaffleID:         i.RaffleID,
		Number:           i.Number,
		Status:           models.Status(i.Status),
		BuyerName:        i.BuyerName,
		BuyerEmail:       i.BuyerEmail,
		BuyerPhone:       i.BuyerPhone,
		ReservedAt:       i.ReservedAt,
		ReservedUntil:    i.ReservedUntil,
		SoldAt:           i.SoldAt,
		PaymentLink:      i.PaymentLink,
		PaymentReference: i.PaymentReference,
		PaymentStatus:    i.PaymentStatus,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
	}
}
