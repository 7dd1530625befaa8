package apns

// Settings configures the APNs relay family. Each entry in Channels is one
// application identity (a "release channel" in subscription terms).
type Settings struct {
	MinTTL   int64                      `yaml:"min_ttl"`
	Channels map[string]ChannelSettings `yaml:"channels"`
}

// ChannelSettings holds the token-authentication credential for one
// application.
type ChannelSettings struct {
	KeyID  string `yaml:"key_id"`
	TeamID string `yaml:"team_id"`
	// Topic is the app bundle id sends are addressed to.
	Topic string `yaml:"topic"`
	// P8Key is the raw content of the signing key file.
	P8Key string `yaml:"p8_key"`
	// Sandbox selects the development APNs environment.
	Sandbox bool `yaml:"sandbox"`
}
