package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
)

// R2Service resolves stored media into presigned Cloudflare R2 URLs that the
// posting platforms can pull from.
type R2Service struct {
	config cfg.Config
}

func NewR2Service(cfg cfg.Config) *R2Service {
	return &R2Service{config: cfg}
}

func (r *R2Service) r2Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r.config.R2.AccessKey, r.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.config.R2.AccountID))
	}), nil
}

// Resolve presigns a time-limited GET for the asset. Assets stored outside R2
// keep their public URL.
func (r *R2Service) Resolve(ctx context.Context, asset *models.MediaAsset) (string, error) {
	if asset.FileKey == "" {
		return asset.FileURL, nil
	}

	client, err := r.r2Client(ctx)
	if err != nil {
		return "", err
	}

	presigner := s3.NewPresignClient(client)
	request, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.config.R2.BucketName),
		Key:    aws.String(asset.FileKey),
	}, s3.WithPresignExpires(1*time.Hour))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return request.URL, nil
}
