package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/iai-protocole/registration/registration"
	"github.com/iai-protocole/registration/slices"
)

var _ registration.Repository = &DB{}

type registrationDynamo struct {
	PK string
	SK string

	GSI1PK string
	GSI1SK string

	ID          uuid.UUID
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Age         int
	Nationality string
	Gender      registration.Gender
	Class       string
	Reviewed    bool
	CreatedAt   time.Time
}

// emailDynamo is the uniqueness marker written alongside every record.
// Its key is derived from the lowercased email, so a conditional put on
// it is the store-level duplicate-email constraint.
type emailDynamo struct {
	PK string
	SK string

	Email          string
	RegistrationID uuid.UUID
}

const (
	registrationEntityName = "REGISTRATION"
	emailEntityName        = "REGEMAIL"
)

// createdAtSortLayout is fixed width so GSI1SK sorts chronologically.
const createdAtSortLayout = "2006-01-02T15:04:05.000000000Z"

func registrationPK(id uuid.UUID) string {
	return fmt.Sprintf("%s#%s", registrationEntityName, id)
}

func registrationGSI1SK(createdAt time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s#%s", createdAt.UTC().Format(createdAtSortLayout), id)
}

func emailPK(email string) string {
	return fmt.Sprintf("%s#%s", emailEntityName, strings.ToLower(email))
}

func registrationToDynamo(record registration.Record) registrationDynamo {
	return registrationDynamo{
		PK:          registrationPK(record.ID),
		SK:          registrationEntityName,
		GSI1PK:      registrationEntityName,
		GSI1SK:      registrationGSI1SK(record.CreatedAt, record.ID),
		ID:          record.ID,
		FirstName:   record.FirstName,
		LastName:    record.LastName,
		Email:       record.Email,
		Phone:       record.Phone,
		Age:         record.Age,
		Nationality: record.Nationality,
		Gender:      record.Gender,
		Class:       record.Class,
		Reviewed:    record.Reviewed,
		CreatedAt:   record.CreatedAt,
	}
}

func dynamoToRegistration(dynReg registrationDynamo) registration.Record {
	return registration.Record{
		ID:          dynReg.ID,
		FirstName:   dynReg.FirstName,
		LastName:    dynReg.LastName,
		Email:       dynReg.Email,
		Phone:       dynReg.Phone,
		Age:         dynReg.Age,
		Nationality: dynReg.Nationality,
		Gender:      dynReg.Gender,
		Class:       dynReg.Class,
		Reviewed:    dynReg.Reviewed,
		CreatedAt:   dynReg.CreatedAt,
	}
}

func (d *DB) CreateRegistration(ctx context.Context, record registration.Record) error {
	dynamoReg := registrationToDynamo(record)

	regItem, err := attributevalue.MarshalMap(dynamoReg)
	if err != nil {
		return registration.NewFailedToTranslateToDBModelError("Failed to translate registration to dynamo model", err)
	}
	regExpr := exprMustBuild(expression.NewBuilder().
		WithCondition(newEntityConditional()))

	emailItem, err := attributevalue.MarshalMap(emailDynamo{
		PK:             emailPK(record.Email),
		SK:             emailEntityName,
		Email:          strings.ToLower(record.Email),
		RegistrationID: record.ID,
	})
	if err != nil {
		return registration.NewFailedToTranslateToDBModelError("Failed to translate email marker to dynamo model", err)
	}
	emailExpr := exprMustBuild(expression.NewBuilder().
		WithCondition(newEntityConditional()))

	_, err = d.dynamoClient.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:                 aws.String(d.tableName),
					Item:                      regItem,
					ConditionExpression:       regExpr.Condition(),
					ExpressionAttributeNames:  regExpr.Names(),
					ExpressionAttributeValues: regExpr.Values(),
				},
			},
			{
				Put: &types.Put{
					TableName:                 aws.String(d.tableName),
					Item:                      emailItem,
					ConditionExpression:       emailExpr.Condition(),
					ExpressionAttributeNames:  emailExpr.Names(),
					ExpressionAttributeValues: emailExpr.Values(),
				},
			},
		},
	})
	if err != nil {
		var transactionFailedErr *types.TransactionCanceledException
		if errors.As(err, &transactionFailedErr) {
			reasons := transactionFailedErr.CancellationReasons
			if len(reasons) == 2 && aws.ToString(reasons[1].Code) == "ConditionalCheckFailed" {
				return registration.NewDuplicateEmailError(record.Email)
			}
			return registration.NewFailedToWriteError(fmt.Sprintf("Registration with ID %q already exists", record.ID), err)
		}

		return registration.NewFailedToWriteError("Failed TransactWriteItems call", err)
	}

	return nil
}

func (d *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: emailPK(email)},
			"SK": &types.AttributeValueMemberS{Value: emailEntityName},
		},
	})
	if err != nil {
		return false, registration.NewFailedToFetchError(fmt.Sprintf("Failed to fetch email marker for %q", email), err)
	}

	return len(resp.Item) > 0, nil
}

func (d *DB) ListRegistrations(ctx context.Context, limit int32, cursor *string) (registration.ListRegistrationsResponse, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(registrationEntityName))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build dynamo key expression: %s", err))
	}

	var startKey map[string]types.AttributeValue
	if cursor != nil {
		startKey, err = cursorToLastEval(*cursor)
		if err != nil {
			return registration.ListRegistrationsResponse{}, registration.NewInvalidCursorError("Invalid cursor", err)
		}
	}

	result, err := d.dynamoClient.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		IndexName:                 aws.String(gsi1),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		// Newest registrations first
		ScanIndexForward: aws.Bool(false),
		// Fetch 1 more than limit to check if there is another page or not
		Limit:             aws.Int32(limit + 1),
		ExclusiveStartKey: startKey,
	})
	if err != nil {
		return registration.ListRegistrationsResponse{}, registration.NewFailedToFetchError("Failed to fetch registrations from dynamo", err)
	}

	var dynamoItems []registrationDynamo
	err = attributevalue.UnmarshalListOfMaps(result.Items, &dynamoItems)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal dynamo registrations: %s", err))
	}

	hasNextPage := len(dynamoItems) > int(limit)

	var newCursor *string
	if hasNextPage && len(result.LastEvaluatedKey) > 0 {
		// Can't use LastEvalKey directly because we grabbed an extra item to check for next page
		lastItemGivenToUser := result.Items[len(result.Items)-2]
		lastItemKey := getKeyFromItem(result.LastEvaluatedKey, lastItemGivenToUser)
		c, err := lastEvalKeyToCursor(lastItemKey)
		if err != nil {
			panic(fmt.Sprintf("failed to make cursor from lastEvalKey: %s", err))
		}
		newCursor = &c
	}

	return registration.ListRegistrationsResponse{
		Data: slices.Map(dynamoItems, func(v registrationDynamo) registration.Record {
			return dynamoToRegistration(v)
		})[:min(int(limit), len(dynamoItems))],
		Cursor:      newCursor,
		HasNextPage: hasNextPage,
	}, nil
}

func (d *DB) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	dynReg, err := d.getRegistration(ctx, id)
	if err != nil {
		return err
	}

	_, err = d.dynamoClient.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName: aws.String(d.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: dynReg.PK},
						"SK": &types.AttributeValueMemberS{Value: dynReg.SK},
					},
				},
			},
			{
				Delete: &types.Delete{
					TableName: aws.String(d.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: emailPK(dynReg.Email)},
						"SK": &types.AttributeValueMemberS{Value: emailEntityName},
					},
				},
			},
		},
	})
	if err != nil {
		return registration.NewFailedToWriteError(fmt.Sprintf("Failed to delete registration %q", id), err)
	}

	return nil
}

func (d *DB) SetReviewFlag(ctx context.Context, id uuid.UUID, reviewed bool) error {
	expr := exprMustBuild(expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("Reviewed"), expression.Value(reviewed))).
		WithCondition(existingEntityConditional()))

	_, err := d.dynamoClient.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: registrationPK(id)},
			"SK": &types.AttributeValueMemberS{Value: registrationEntityName},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return registration.NewRegistrationDoesNotExistError(fmt.Sprintf("Registration with ID %q not found", id), err)
		}
		return registration.NewFailedToWriteError(fmt.Sprintf("Failed to set review flag on registration %q", id), err)
	}

	return nil
}

func (d *DB) getRegistration(ctx context.Context, id uuid.UUID) (registrationDynamo, error) {
	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: registrationPK(id)},
			"SK": &types.AttributeValueMemberS{Value: registrationEntityName},
		},
	})
	if err != nil {
		return registrationDynamo{}, registration.NewFailedToFetchError(fmt.Sprintf("Failed to fetch registration with ID %q", id), err)
	}

	if len(resp.Item) == 0 {
		return registrationDynamo{}, registration.NewRegistrationDoesNotExistError(fmt.Sprintf("Registration with ID %q not found", id), nil)
	}

	var dynReg registrationDynamo
	err = attributevalue.UnmarshalMap(resp.Item, &dynReg)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal registration from dynamo: %s", err))
	}

	return dynReg, nil
}
