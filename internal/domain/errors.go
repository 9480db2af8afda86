package domain

import "errors"

// Sentinel errors shared across packages, following the teacher's
// errors.New + fmt.Errorf("...: %w", err) pattern. The control-plane layer
// maps these (and package-local sentinels) onto the closed error-kind
// taxonomy of §7 via controlplane's error envelope.
var (
	ErrNotFound            = errors.New("domain: not found")
	ErrIllegalTransition    = errors.New("domain: illegal state transition")
	ErrValidation           = errors.New("domain: validation failed")
	ErrAlreadyClaimed       = errors.New("domain: queue item already claimed")
	ErrCampaignTerminal     = errors.New("domain: campaign already in terminal state")
)
