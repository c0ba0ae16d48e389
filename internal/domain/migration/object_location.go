package migration

import (
	"fmt"
	"strings"
)

const s3Scheme = "s3://"

// ObjectLocation addresses a single object in a bucket.
type ObjectLocation struct {
	Bucket string
	Key    string
}

// ParseS3Link parses links of the form s3://<bucket>/<key>.
func ParseS3Link(raw string) (ObjectLocation, error) {
	link := strings.TrimSpace(raw)
	if !strings.HasPrefix(link, s3Scheme) {
		return ObjectLocation{}, fmt.Errorf("%w: expected s3://<bucket>/<key>", ErrInvalidSourceLink)
	}

	bucket, key, found := strings.Cut(strings.TrimPrefix(link, s3Scheme), "/")
	if !found || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return ObjectLocation{}, fmt.Errorf("%w: expected s3://<bucket>/<key>", ErrInvalidSourceLink)
	}

	return ObjectLocation{Bucket: bucket, Key: key}, nil
}

func (l ObjectLocation) String() string {
	return s3Scheme + l.Bucket + "/" + l.Key
}

// BaseName returns the last path component of the key.
func (l ObjectLocation) BaseName() string {
	if i := strings.LastIndex(l.Key, "/"); i >= 0 {
		return l.Key[i+1:]
	}
	return l.Key
}

// OutputLayout places converted archives under a bucket and optional prefix.
type OutputLayout struct {
	Bucket string
	Prefix string
}

func NewOutputLayout(bucket, prefix string) OutputLayout {
	prefix = strings.TrimLeft(strings.TrimSpace(prefix), "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return OutputLayout{Bucket: bucket, Prefix: prefix}
}

func (l OutputLayout) Result(name string) ObjectLocation {
	return ObjectLocation{Bucket: l.Bucket, Key: l.Prefix + name}
}

// Marker is the folder marker location; ok is false when no prefix is set.
func (l OutputLayout) Marker() (loc ObjectLocation, ok bool) {
	if l.Prefix == "" {
		return ObjectLocation{}, false
	}
	return ObjectLocation{Bucket: l.Bucket, Key: l.Prefix}, true
}
