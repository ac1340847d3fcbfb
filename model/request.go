package model

// DownloadRequest is the single value the pipeline accepts, whatever the
// external event looked like. The text-message handler and the button
// handler both translate into this; nothing downstream knows which one it
// came from.
type DownloadRequest struct {
	ChatID     int64  // requester chat to relay results into
	Reference  string // raw reference string as received
	Descriptor ContentDescriptor
	Bitrate    int
}

// Fingerprint is the vault key for the request.
func (r DownloadRequest) Fingerprint() string {
	return r.Descriptor.Fingerprint(r.Bitrate)
}
