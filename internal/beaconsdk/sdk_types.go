package beaconsdk

import (
	"fmt"
	"runtime"

	"github.com/beacon-library/beacon-agent/internal/version"
)

const (
	HeaderUserAgent      = "User-Agent"
	HeaderBeaconVersion  = "X-Beacon-Version"
	HeaderBeaconDeviceId = "X-Beacon-Device-Id"
)

var UserAgent = fmt.Sprintf("BeaconAgent/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)
