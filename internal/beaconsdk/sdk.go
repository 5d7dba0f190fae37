package beaconsdk

import (
	"time"

	"github.com/beacon-library/beacon-agent/internal/utils"
	"github.com/beacon-library/beacon-agent/internal/version"
	"github.com/imroc/req/v3"
)

const (
	defaultRequestTimeout = 30 * time.Second
)

// BeaconSDK is the client for the Beacon Library server API.
type BeaconSDK struct {
	client      *req.Client
	baseURL     string
	Libraries   *LibrariesAPI
	Directories *DirectoriesAPI
	Files       *FilesAPI
	Events      *EventsAPI
}

// New creates a new BeaconSDK client. All calls are bearer-token
// authenticated; tokens are pulled from the TokenSource before each request
// so refresh happens transparently.
func New(config *Config) (*BeaconSDK, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := req.C().
		SetBaseURL(config.BaseURL).
		SetTimeout(defaultRequestTimeout).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1*time.Second).
		SetUserAgent(UserAgent).
		SetCommonHeader(HeaderBeaconVersion, version.Version).
		SetCommonHeader(HeaderBeaconDeviceId, utils.HWID).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	if config.TokenSource != nil {
		client.OnBeforeRequest(authMiddleware(config.TokenSource))
	}

	return &BeaconSDK{
		client:      client,
		baseURL:     config.BaseURL,
		Libraries:   newLibrariesAPI(client),
		Directories: newDirectoriesAPI(client),
		Files:       newFilesAPI(client),
		Events:      newEventsAPI(client),
	}, nil
}

// Close terminates all connections and cleans up resources.
func (s *BeaconSDK) Close() {
	if s.Events != nil {
		s.Events.Close()
	}
}
