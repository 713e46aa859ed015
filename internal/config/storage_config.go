package config

type Storage struct{}

var _ StorageConfig = Storage{}

// GetStorageDriver selects the object store: "memory" or "s3"
func (Storage) GetStorageDriver() string {
	return GetEnv("STORAGE_DRIVER", "memory")
}

func (Storage) GetS3Bucket() string {
	return GetEnv("S3_BUCKET", "")
}

func (Storage) GetS3Region() string {
	return GetEnv("S3_REGION", "us-east-1")
}

// GetS3Endpoint is optional; set it for MinIO or other S3-compatible stores
func (Storage) GetS3Endpoint() string {
	return GetEnv("S3_ENDPOINT", "")
}

func (Storage) GetS3PathStyle() bool {
	return GetBool("S3_PATH_STYLE", false)
}
