package fcm

// Settings configures the FCM relay family.
type Settings struct {
	// MinTTL is the operator floor applied to requested TTLs, so near-zero
	// TTL messages are not dropped by the relay before delivery.
	MinTTL int64 `yaml:"min_ttl"`
	// Credentials maps an application identifier to the server credential
	// used to authenticate sends for that application.
	Credentials map[string]Credential `yaml:"credentials"`
}

// Credential identifies one Firebase project identity.
type Credential struct {
	ProjectID string `yaml:"project_id" json:"project_id"`
	// ServiceAccountJSON is the raw service-account key content.
	ServiceAccountJSON string `yaml:"credential" json:"credential"`
}
