// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds ClassHub's own configuration. WAFFLE's CoreConfig covers
// ports, TLS, logging and CORS; everything specific to this service lives
// here and is passed to every lifecycle hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (required in prod)
	SessionName   string        // Cookie name for sessions (default: classhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Bootstrap admin, created or promoted at startup when AdminEmail is set
	AdminEmail    string
	AdminPassword string
	AdminName     string

	// File storage configuration
	StorageType      string // Storage backend: "local" or "s3"
	StorageLocalPath string // Local storage directory (e.g., "./uploads")
	StorageLocalURL  string // URL prefix for serving local files (e.g., "/files")

	// S3 configuration (only used if StorageType is "s3")
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string        // Key prefix (e.g., "records/")
	StorageS3Endpoint  string        // Optional S3-compatible endpoint (MinIO, LocalStack)
	StorageS3AccessKey string        // Optional static credentials
	StorageS3SecretKey string
	StorageS3URLExpiry time.Duration // Presigned URL lifetime

	// Redis notification push (disabled when RedisAddr is empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	// Live record feed
	FeedBuffer    int  // Per-subscriber snapshot buffer
	ChangeStreams bool // Feed the hub from Mongo change streams instead of local writes

	// Audit logging: "all", "db", "log" or "off" per category
	AuditLogAuth     string
	AuditLogWorkflow string
	AuditLogAdmin    string

	// Operation timeouts (zero keeps the built-in default)
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
	TimeoutNotify time.Duration
}
