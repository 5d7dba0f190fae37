package beaconsdk

// UploadProgress is reported after every part, enough for a UI progress
// bar without coupling the engine to rendering.
type UploadProgress struct {
	LoadedBytes  int64
	TotalBytes   int64
	Percent      float64
	CurrentChunk int
	TotalChunks  int
}

type ProgressCallback func(progress *UploadProgress)
