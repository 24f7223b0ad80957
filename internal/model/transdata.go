package model

import "github.com/neuron-gateway/gateway/infrastructure/gwerrors"

// TagMeta is a single (key, value) metadata pair carried alongside a
// trans-data tag value, e.g. an OPC UA quality code. Supplemented from the
// original's update_with_meta; the distilled spec names "metadata triples"
// without detailing the shape.
type TagMeta struct {
	Key   string
	Value string
}

// TransTag is one tag's value within a trans-data frame. Error carries one
// of the gwerrors read-path codes (PLUGIN_READ_FAILURE, PLUGIN_TAG_EXPIRED)
// rather than a plugin-native code, so acceptance tests can distinguish "no
// value yet" from "value is stale" per spec.md's two named cases; it is
// empty when Value holds a live reading.
type TransTag struct {
	Name  string
	Value interface{}
	Error gwerrors.ErrorCode
	Meta  []TagMeta
}

// TransData is the payload flowing driver -> app for one group's report
// cycle. In the original C implementation this is reference-counted and
// explicitly freed by the last releaser; here it is a plain, immutable
// value delivered once per subscriber, and the Go garbage collector
// reclaims it once the last subscriber's reference drops — the same
// exactly-once-release-per-subscriber semantics the spec requires, without
// manual refcounting.
type TransData struct {
	Driver string
	Group  string
	Tags   []TransTag
}

// Snapshot returns an independent copy of the frame suitable for handing to
// one subscriber without sharing mutable backing storage with another.
func (t *TransData) Snapshot() *TransData {
	tags := make([]TransTag, len(t.Tags))
	for i, tag := range t.Tags {
		tags[i] = tag
		if len(tag.Meta) > 0 {
			meta := make([]TagMeta, len(tag.Meta))
			copy(meta, tag.Meta)
			tags[i].Meta = meta
		}
	}
	return &TransData{Driver: t.Driver, Group: t.Group, Tags: tags}
}
