package backup

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
)

// ErrNoBackup is returned when an owner has no archived backup.
var ErrNoBackup = errors.New("no backup archived")

// S3API is the part of the S3 client the archive uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Archive stores backup documents under <prefix><owner>/<timestamp>.json.
type S3Archive struct {
	Client S3API
	Bucket string
	// Prefix has no leading slash and usually a trailing one, e.g. "backups/".
	Prefix string
}

// NewS3Client builds an S3 client with static credentials, falling back to the default chain when
// accessKey is empty.
func NewS3Client(ctx context.Context, region, accessKey, secretKey string) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}
	return s3.NewFromConfig(cfg), nil
}

func (a *S3Archive) ownerPrefix(ownerID string) string {
	return a.Prefix + ownerID + "/"
}

// Save uploads doc and returns its object key.
func (a *S3Archive) Save(ctx context.Context, ownerID string, doc Document, at time.Time) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return "", err
	}
	key := a.ownerPrefix(ownerID) + at.UTC().Format("20060102T150405Z") + ".json"
	if _, err := a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(a.Bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(buf.Bytes()),
		ContentType:       aws.String("application/json"),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	}); err != nil {
		return "", errors.Wrap(err, "failed to invoke PutObject")
	}
	return key, nil
}

// Load downloads and decodes the backup at key.
func (a *S3Archive) Load(ctx context.Context, key string) (Document, error) {
	out, err := a.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && (ae.ErrorCode() == "NoSuchKey" || ae.ErrorCode() == "NotFound") {
			return Document{}, errors.Wrap(ErrNoBackup, key)
		}
		return Document{}, errors.Wrap(err, "failed to invoke GetObject")
	}
	defer out.Body.Close()

	doc, err := Decode(out.Body)
	if err != nil {
		return Document{}, errors.Wrap(err, fmt.Sprintf("failed to decode %q", key))
	}
	return doc, nil
}

// Latest returns the key of the newest backup of ownerID.
func (a *S3Archive) Latest(ctx context.Context, ownerID string) (string, error) {
	var keys []string
	var token *string
	for {
		out, err := a.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(a.Bucket),
			Prefix:            aws.String(a.ownerPrefix(ownerID)),
			ContinuationToken: token,
		})
		if err != nil {
			return "", errors.Wrap(err, "failed to invoke ListObjectsV2")
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	if len(keys) == 0 {
		return "", ErrNoBackup
	}
	sort.Strings(keys)
	return keys[len(keys)-1], nil
}
