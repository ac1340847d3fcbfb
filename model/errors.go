package model

import "errors"

// Error taxonomy for the resolution and caching core. Callers classify with
// errors.Is; context travels via fmt.Errorf("%w") wrapping.
var (
	// ErrInvalidReference means the input matched no recognized content shape.
	ErrInvalidReference = errors.New("invalid content reference")

	// ErrFetchFailed means the downloader collaborator failed.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrNoArtifactProduced means the downloader completed without producing
	// any audio file.
	ErrNoArtifactProduced = errors.New("no audio file produced")

	// ErrPublishFailed means the durable channel rejected or failed a publish.
	ErrPublishFailed = errors.New("publish failed")

	// ErrVaultWriteRejected means a value failed structural validation on its
	// way into the vault.
	ErrVaultWriteRejected = errors.New("vault write rejected")
)
