package webpush

// Settings configures the Web Push relay family. Each entry in
// Applications is one VAPID identity sends are signed with.
type Settings struct {
	MinTTL       int64                `yaml:"min_ttl"`
	Applications map[string]VapidKeys `yaml:"applications"`
}

// VapidKeys is the signing identity for one application.
type VapidKeys struct {
	PublicKey  string `yaml:"public_key"`
	PrivateKey string `yaml:"private_key"`
	// Subscriber is the contact address sent in the VAPID sub claim.
	Subscriber string `yaml:"subscriber"`
}
