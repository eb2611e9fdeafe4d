// Package dynamo implements the registration store on a single DynamoDB
// table. Email uniqueness is enforced with a marker item written in the
// same transaction as the record.
package dynamo

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

const (
	gsi1 = "GSI1"
)

type DB struct {
	dynamoClient *dynamodb.Client
	tableName    string
}

func NewDB(dynamoClient *dynamodb.Client, tableName string) *DB {
	return &DB{
		dynamoClient: dynamoClient,
		tableName:    tableName,
	}
}

func newEntityConditional() expression.ConditionBuilder {
	return expression.Name("PK").AttributeNotExists()
}

func existingEntityConditional() expression.ConditionBuilder {
	return expression.Name("PK").AttributeExists()
}

func exprMustBuild(builder expression.Builder) expression.Expression {
	expr, err := builder.Build()
	if err != nil {
		panic("failed to build dynamo expression")
	}

	return expr
}
