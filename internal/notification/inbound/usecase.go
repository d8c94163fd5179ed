package inbound

import (
	"context"

	"github.com/shandysiswandi/otpreset/internal/notification/usecase"
)

type uc interface {
	ConsumeResetProvisioning(ctx context.Context, in usecase.ConsumeResetProvisioningInput) error
}
