package beaconsdk

const (
	DefaultBaseURL = "https://beacon.example.org"
)

// Config is the configuration for the BeaconSDK.
type Config struct {
	BaseURL     string      // BaseURL is required
	TokenSource TokenSource // TokenSource is optional (anonymous endpoints only without it)
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}
	return nil
}
