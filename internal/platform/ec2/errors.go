package ec2

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/aws/smithy-go"

	"github.com/imamik/facets/internal/platform/cloud"
)

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func isNotFound(err error) bool {
	switch errorCode(err) {
	case "InvalidInstanceID.NotFound", "InvalidInstanceID.Malformed",
		"InvalidVolume.NotFound", "InvalidVolumeID.Malformed",
		"InvalidAddress.NotFound", "InvalidAllocationID.NotFound":
		return true
	}
	return false
}

func isDuplicate(err error) bool {
	switch errorCode(err) {
	case "InvalidGroup.Duplicate", "InvalidPlacementGroup.Duplicate", "InvalidPermission.Duplicate":
		return true
	}
	return false
}

// wrap marks not-found API errors so that cloud.IsNotFound sees them.
func wrap(format string, err error, args ...any) error {
	if isNotFound(err) {
		err = fmt.Errorf("%w: %w", cloud.ErrNotFound, err)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
