package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrResolution    = errors.New("tag resolution failed")
	ErrDiscovery     = errors.New("document discovery failed")
	ErrConversion    = errors.New("conversion failed")
	ErrUpdate        = errors.New("document update failed")
	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify returns the short error kind used for the error_kind log field.
// Phase markers win over the generic ones so a conversion that failed because
// the tool timed out still reports as "conversion".
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrResolution):
		return "resolution"
	case errors.Is(err, ErrDiscovery):
		return "discovery"
	case errors.Is(err, ErrConversion):
		return "conversion"
	case errors.Is(err, ErrUpdate):
		return "update"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "transient"
	}
}

// Hint suggests the operator action for a classified failure.
func Hint(err error) string {
	switch Classify(err) {
	case "resolution":
		return "check that the tag exists in Paperless and that PAPERLESS_AUTH is valid"
	case "discovery":
		return "check Paperless availability; discovery retries on the next poll"
	case "conversion":
		return "inspect docling output in the debug log; the document is retried on the next poll"
	case "update":
		return "check Paperless write permissions for the configured credential"
	case "configuration":
		return "run paperling config show and fix the reported setting"
	case "external_tool":
		return "run paperling check to verify docling is installed"
	default:
		return "check logs for details"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
