package hcloud

import (
	"regexp"
	"strings"
	"unicode"
)

const maxLabelLength = 63

var invalidLabelChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// NormalizeTags implements cloud.TagNormalizer. Label values may only hold
// alphanumerics, '-', '_' and '.', must start and end with an alphanumeric
// and are at most 63 characters long; "/dev/sdf" becomes "dev_sdf".
func (p *Provider) NormalizeTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[labelValue(k)] = labelValue(v)
	}
	return out
}

func labelValue(v string) string {
	v = invalidLabelChars.ReplaceAllString(v, "_")
	v = strings.TrimFunc(v, notAlnum)
	if len(v) > maxLabelLength {
		v = strings.TrimRightFunc(v[:maxLabelLength], notAlnum)
	}
	return v
}

func notAlnum(r rune) bool {
	return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
}
