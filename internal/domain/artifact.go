package domain

import (
	"regexp"
	"strings"
)

// ArtifactRef is a reference to data at rest, identified by its
// object-store URI. Ids are dense and assigned in first-seen order.
type ArtifactRef struct {
	ID       int               `json:"id"`
	URI      string            `json:"uri"`
	Bucket   string            `json:"bucket,omitempty"`
	Key      string            `json:"key,omitempty"`
	Security *ArtifactSecurity `json:"security,omitempty"`
}

// ArtifactSecurity is the bucket-level security and placement metadata
// attached to every artifact sharing the bucket. Fields that could not
// be resolved carry "Unknown".
type ArtifactSecurity struct {
	Region       string            `json:"region"`
	Encryption   string            `json:"encryption"`
	Versioning   string            `json:"versioning"`
	PublicAccess string            `json:"publicAccess"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// MetaUnknown is the placeholder for bucket metadata fields that an
// upstream denial or absence left unresolved.
const MetaUnknown = "Unknown"

var objectURIRe = regexp.MustCompile(`^s3://([^/]+)/?(.*)$`)

// SplitObjectURI splits an object-store URI into bucket and key. The
// second return is false when the string is not an object-store URI.
func SplitObjectURI(uri string) (bucket, key string, ok bool) {
	m := objectURIRe.FindStringSubmatch(uri)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// DatasetIDFromURI derives the canonical dataset identity from an
// object-store prefix URI.
func DatasetIDFromURI(uri string) (string, bool) {
	bucket, key, ok := SplitObjectURI(uri)
	if !ok {
		return "", false
	}
	prefix := strings.Trim(key, "/")
	prefix = strings.ReplaceAll(prefix, "/", "::")
	if prefix == "" {
		return "s3://" + bucket, true
	}
	return "s3://" + bucket + "/" + prefix, true
}
