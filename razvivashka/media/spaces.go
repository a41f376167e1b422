package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	lru "github.com/hashicorp/golang-lru"
)

const (
	urlCacheSize = 2048
	// Presigned links live for an hour; cached entries are dropped well
	// before they expire so a handed-out URL stays usable.
	presignTTL     = time.Hour
	cacheTTLMargin = 10 * time.Minute
)

// SpacesService serves exercise media (riddle pictures, demo videos) from a
// DigitalOcean Spaces bucket via short-lived presigned GET URLs.
type SpacesService struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	region    string
	mediaRoot string
	urls      *lru.Cache
}

type cachedURL struct {
	url       string
	expiresAt time.Time
}

func NewSpacesService(spacesKey, spacesSecret, region, bucket, mediaRoot string) (*SpacesService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load Spaces config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	cache, _ := lru.New(urlCacheSize)

	return &SpacesService{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		region:    region,
		mediaRoot: strings.TrimPrefix(mediaRoot, "/"),
		urls:      cache,
	}, nil
}

// MediaURL returns a presigned GET URL for the given media key. URLs are
// cached until shortly before they expire.
func (s *SpacesService) MediaURL(ctx context.Context, mediaKey string) (string, error) {
	if mediaKey == "" {
		return "", nil
	}

	key := s.objectKey(mediaKey)
	if v, ok := s.urls.Get(key); ok {
		entry := v.(cachedURL)
		if time.Now().Before(entry.expiresAt) {
			return entry.url, nil
		}
		s.urls.Remove(key)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}

	s.urls.Add(key, cachedURL{
		url:       req.URL,
		expiresAt: time.Now().Add(presignTTL - cacheTTLMargin),
	})
	return req.URL, nil
}

// Exists checks whether the object behind a media key is actually in the
// bucket; the authoring tool calls this before publishing an item.
func (s *SpacesService) Exists(ctx context.Context, mediaKey string) (bool, error) {
	key := s.objectKey(mediaKey)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (s *SpacesService) objectKey(mediaKey string) string {
	mediaKey = strings.TrimPrefix(mediaKey, "/")
	if s.mediaRoot == "" {
		return mediaKey
	}
	return s.mediaRoot + "/" + mediaKey
}

func (s *SpacesService) GetBucket() string {
	return s.bucket
}

func (s *SpacesService) GetRegion() string {
	return s.region
}
