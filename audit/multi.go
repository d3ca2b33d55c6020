package audit

import (
	"context"
	"errors"

	"github.com/warp/payout-engine/generic"
)

// MultiLog writes each entry to every log in order. One failing log does not
// stop the others; the failures are joined.
type MultiLog []generic.AuditLog

func (m MultiLog) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	var errs []error
	for _, log := range m {
		if log == nil {
			continue
		}
		if err := log.AppendAudit(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
