/* SPDX-License-Identifier: BSD-2-Clause */

package rangeseek

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ricardobranco777/rangeseek/rangecache"
)

const tracerName = "github.com/ricardobranco777/rangeseek"

const (
	urlKey        = attribute.Key("rangeseek.url")
	sizeKey       = attribute.Key("rangeseek.size")
	rangeStartKey = attribute.Key("range.start")
	rangeEndKey   = attribute.Key("range.end")
	fetchKindKey  = attribute.Key("fetch.kind")
	fetchBytesKey = attribute.Key("fetch.bytes")
	readOffsetKey = attribute.Key("read.offset")
	readLengthKey = attribute.Key("read.length")
	cacheHitKey   = attribute.Key("read.cache_hit")
)

func rangeAttrs(iv rangecache.Interval) []attribute.KeyValue {
	return []attribute.KeyValue{rangeStartKey.Int64(iv.Start), rangeEndKey.Int64(iv.End)}
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}
