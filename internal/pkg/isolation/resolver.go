package isolation

import (
	"fmt"

	"github.com/lumenisp/netbill/app/models"
)

// ProfileResolver decides which PPPoE profile a service should be moved to.
// Isolation and restoration share one routine that only differs in the
// resolved target profile.
type ProfileResolver interface {
	Resolve(service *models.Service) (string, error)
}

// FixedProfileResolver always resolves to one profile. Used for isolation,
// where every service lands on the same throttled profile.
type FixedProfileResolver struct {
	Profile string
}

func (r FixedProfileResolver) Resolve(_ *models.Service) (string, error) {
	if r.Profile == "" {
		return "", fmt.Errorf("isolation profile is not configured")
	}
	return r.Profile, nil
}

// PackageProfileResolver resolves the profile belonging to the service's
// package. Used for restoration, where the service goes back to its plan.
type PackageProfileResolver struct {
	Prefix string
}

func (r PackageProfileResolver) Resolve(service *models.Service) (string, error) {
	if service.Package == nil {
		return "", fmt.Errorf("service %d has no package loaded", service.ID)
	}
	return service.Package.ProfileName(r.Prefix), nil
}
