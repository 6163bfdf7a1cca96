package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appsync "github.com/oms/backend/internal/application/sync"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ensure S3Store implements the ingestion port
var _ appsync.IngestionSource = (*S3Store)(nil)

// ingestFile is the export document the upstream drops under the ingest
// prefix. One file carries one or more orders.
type ingestFile struct {
	Orders []ingestOrder `json:"orders"`
}

type ingestOrder struct {
	OrderNumber string       `json:"order_number"`
	ReceivedAt  time.Time    `json:"received_at"`
	Lines       []ingestLine `json:"lines"`
}

type ingestLine struct {
	SKU      string          `json:"sku"`
	Quantity decimal.Decimal `json:"quantity"`
}

// ingestObject is one listed export file, carried with its modification
// time so orders without a received_at still get a usable timestamp.
type ingestObject struct {
	key          string
	lastModified time.Time
}

// FetchNew lists export files modified at or after since, oldest first,
// and decodes them until limit orders are collected. A file that fails to
// decode is skipped with a warning; the files around it still go through.
// Re-reads of the same window are expected, ingestion dedupes by order
// number.
func (s *S3Store) FetchNew(ctx context.Context, since time.Time, limit int) ([]appsync.IncomingOrder, error) {
	if limit <= 0 {
		return nil, nil
	}

	objects, err := s.listIngestObjects(ctx, since)
	if err != nil {
		return nil, err
	}

	orders := make([]appsync.IncomingOrder, 0, limit)
	for _, obj := range objects {
		if len(orders) >= limit {
			break
		}
		entries, err := s.readIngestObject(ctx, obj.key)
		if err != nil {
			s.logger.Warn("Skipping unreadable ingest object",
				zap.String("key", obj.key),
				zap.Error(err))
			continue
		}
		for _, incoming := range toIncomingOrders(entries, obj.lastModified) {
			if len(orders) >= limit {
				break
			}
			orders = append(orders, incoming)
		}
	}

	s.logger.Debug("Fetched orders from ingest prefix",
		zap.Int("objects", len(objects)),
		zap.Int("orders", len(orders)))
	return orders, nil
}

// listIngestObjects walks the ingest prefix and keeps the .json objects
// modified at or after since, sorted oldest first so the fetch limit
// drains the backlog in arrival order. Anything without the .json suffix
// is ignored; partial uploads and folder markers live under other names.
func (s *S3Store) listIngestObjects(ctx context.Context, since time.Time) ([]ingestObject, error) {
	var objects []ingestObject

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.ingestPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list ingest objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			modified := aws.ToTime(obj.LastModified)
			if modified.Before(since) {
				continue
			}
			objects = append(objects, ingestObject{key: key, lastModified: modified})
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].lastModified.Before(objects[j].lastModified)
	})
	return objects, nil
}

func (s *S3Store) readIngestObject(ctx context.Context, key string) ([]ingestOrder, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return decodeIngestFile(payload)
}

func decodeIngestFile(payload []byte) ([]ingestOrder, error) {
	var file ingestFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("malformed ingest file: %w", err)
	}
	return file.Orders, nil
}

// toIncomingOrders maps decoded export entries onto the ingestion port's
// shape. Tokens and quantities pass through raw; an entry without a
// received_at inherits the export file's modification time.
func toIncomingOrders(entries []ingestOrder, fallback time.Time) []appsync.IncomingOrder {
	orders := make([]appsync.IncomingOrder, 0, len(entries))
	for _, entry := range entries {
		received := entry.ReceivedAt
		if received.IsZero() {
			received = fallback
		}
		lines := make([]appsync.IncomingLine, 0, len(entry.Lines))
		for _, line := range entry.Lines {
			lines = append(lines, appsync.IncomingLine{
				SKUToken: line.SKU,
				Quantity: line.Quantity,
			})
		}
		orders = append(orders, appsync.IncomingOrder{
			OrderNumber: entry.OrderNumber,
			Lines:       lines,
			ReceivedAt:  received,
		})
	}
	return orders
}
