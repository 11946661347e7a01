package s3store

// Config contains S3 connection settings for snapshot storage.
// Endpoint and ForcePathStyle are for S3-compatible services like MinIO.
// Collections are stored as <Prefix>/<name>.json.
type Config struct {
	Bucket         string `env:"S3_BUCKET"`
	Region         string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"S3_SECRET_KEY"`
	Endpoint       string `env:"S3_ENDPOINT"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
	Prefix         string `env:"S3_PREFIX" envDefault:"subledger"`
}
