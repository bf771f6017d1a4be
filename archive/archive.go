package archive

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/parquet-go/parquet-go"
	log "github.com/sirupsen/logrus"

	"bus-tracker/model"
)

const contentType = "application/vnd.apache.parquet"

// Row is the Parquet schema of an archived fix.
type Row struct {
	PositionID uint64  `parquet:"position_id"`
	BusID      uint64  `parquet:"bus_id"`
	RecordedAt string  `parquet:"recorded_at"`
	Lat        float64 `parquet:"lat"`
	Lng        float64 `parquet:"lng"`
}

// Source is the part of the store the archiver drains.
type Source interface {
	InactivePositionsBefore(ctx context.Context, before time.Time, limit int) ([]model.Position, error)
	DeletePositions(ctx context.Context, ids []uint) (int64, error)
}

// Uploader is satisfied by *s3.Client.
type Uploader interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Metrics interface {
	ArchiveObserve(rows int, err error)
}

type Options struct {
	Bucket    string
	After     time.Duration
	Interval  time.Duration
	BatchSize int
}

// Archiver moves aged-out positions to object storage and deletes them
// from the store once the upload is confirmed.
type Archiver struct {
	src     Source
	up      Uploader
	opts    Options
	metrics Metrics
	now     func() time.Time
}

// NewS3Client builds a client for any S3 compatible endpoint.
func NewS3Client(endpoint, region, accessKeyID, secretAccessKey string) *s3.Client {
	return s3.New(s3.Options{
		BaseEndpoint: &endpoint,
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		UsePathStyle: true,
	})
}

func New(src Source, up Uploader, opts Options, m Metrics) *Archiver {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50000
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	return &Archiver{src: src, up: up, opts: opts, metrics: m, now: time.Now}
}

// Run archives on every tick until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.opts.Interval)
	defer ticker.Stop()
	for {
		if n, err := a.RunOnce(ctx); err != nil {
			log.WithError(err).Error("[archive] run failed")
		} else if n > 0 {
			log.WithField("rows", n).Info("[archive] positions archived")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce drains every eligible batch and returns the number of rows
// archived.
func (a *Archiver) RunOnce(ctx context.Context) (int, error) {
	before := a.now().Add(-a.opts.After)
	total := 0
	for {
		batch, err := a.src.InactivePositionsBefore(ctx, before, a.opts.BatchSize)
		if err != nil {
			a.observe(total, err)
			return total, fmt.Errorf("list positions: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		if err := a.archiveBatch(ctx, batch); err != nil {
			a.observe(total, err)
			return total, err
		}
		total += len(batch)
		if len(batch) < a.opts.BatchSize {
			break
		}
	}
	a.observe(total, nil)
	return total, nil
}

func (a *Archiver) observe(rows int, err error) {
	if a.metrics != nil {
		a.metrics.ArchiveObserve(rows, err)
	}
}

// ObjectKey names the object holding batch, so a retried batch lands on
// the same key.
func ObjectKey(batch []model.Position) string {
	first := batch[0]
	last := batch[len(batch)-1]
	day := first.RecordedAt.UTC()
	return fmt.Sprintf("positions/%04d/%02d/%02d/%d-%d.parquet",
		day.Year(), day.Month(), day.Day(), first.ID, last.ID)
}

func (a *Archiver) archiveBatch(ctx context.Context, batch []model.Position) error {
	key := ObjectKey(batch)
	bucket := a.opts.Bucket

	// 1. Upload, unless a run that failed before deleting already did
	if _, err := a.up.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &bucket, Key: &key}); err != nil {
		body, err := encode(batch)
		if err != nil {
			return err
		}
		ct := contentType
		_, err = a.up.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &bucket,
			Key:         &key,
			Body:        bytes.NewReader(body),
			ContentType: &ct,
			Metadata: map[string]string{
				"rows": strconv.Itoa(len(batch)),
			},
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	} else {
		log.WithField("key", key).Warn("[archive] object already exists, deleting rows only")
	}

	// 2. Drop the archived rows from the store
	ids := make([]uint, len(batch))
	for i, p := range batch {
		ids[i] = p.ID
	}
	if _, err := a.src.DeletePositions(ctx, ids); err != nil {
		return fmt.Errorf("delete archived positions: %w", err)
	}
	return nil
}

func encode(batch []model.Position) ([]byte, error) {
	rows := make([]Row, len(batch))
	for i, p := range batch {
		rows[i] = Row{
			PositionID: uint64(p.ID),
			BusID:      uint64(p.BusID),
			RecordedAt: p.RecordedAt.UTC().Format(time.RFC3339),
			Lat:        p.Lat,
			Lng:        p.Lng,
		}
	}
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[Row](&buf)
	if _, err := w.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
