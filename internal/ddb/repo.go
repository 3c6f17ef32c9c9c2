// Package ddb provides a simple repository for writing triage audit rows to DynamoDB.
package ddb

import (
	"context"
	"fmt"

	"github.com/magicman/marv/internal/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// ItemPutter is the slice of the DynamoDB client the repo uses.
type ItemPutter interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Repo wraps a DynamoDB client and table name for assessment rows.
type Repo struct {
	DB    ItemPutter
	Table string
}

// PutAssessment inserts one assessment row. A row with the same keys is never overwritten.
func (r *Repo) PutAssessment(ctx context.Context, a models.AssessmentItem) error {
	if a.PK == "" || a.SK == "" {
		a.PK, a.SK = MakeKeys(a.CaseID, a.CreatedAt)
	}
	if a.Reasons == nil {
		a.Reasons = []string{}
	}
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return err
	}
	_, err = r.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.Table,
		Item:                item,
		ConditionExpression: awsStr("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("put assessment %s: %w", a.CaseID, err)
	}
	return nil
}

// awsStr is a helper to get a pointer to a string literal.
func awsStr(s string) *string { return &s }

// MakeKeys constructs the partition key (PK) and sort key (SK) for an assessment row.
func MakeKeys(caseID, createdAt string) (pk, sk string) {
	return fmt.Sprintf("CASE#%s", caseID), fmt.Sprintf("ASSESSMENT#%s", createdAt)
}
