package storage

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/MrBlinki/sui-hackaton25/internal/config"
)

// New builds the fallback storage tier of the blob proxy. It returns nil when
// no fallback provider is configured.
func New(cfg *config.Config) (Provider, error) {
	fb := cfg.Proxy.Fallback

	switch fb.Provider {
	case "":
		return nil, nil
	case "local":
		return NewLocalProvider(fb.LocalStorage), nil
	case "s3", "b2":
		if fb.Bucket == "" {
			return nil, fmt.Errorf("storage: bucket is required for provider %q", fb.Provider)
		}
		s3Config := &aws.Config{
			Credentials:      credentials.NewStaticCredentials(fb.KeyID, fb.AppKey, ""),
			Endpoint:         aws.String(fb.Endpoint),
			Region:           aws.String(fb.Region),
			S3ForcePathStyle: aws.Bool(true),
		}
		sess, err := session.NewSession(s3Config)
		if err != nil {
			return nil, err
		}
		return NewS3Provider(s3.New(sess), fb.Bucket), nil
	default:
		return nil, fmt.Errorf("storage: unknown provider %q", fb.Provider)
	}
}
