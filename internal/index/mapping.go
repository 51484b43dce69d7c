// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Field names of an indexed event document.
const (
	FieldMD5ID         = "md5Id"
	FieldStrTimestamp  = "logStrTimestamp"
	FieldLongTimestamp = "logLongTimestamp"
	FieldLogPath       = "logPath"
	FieldContent       = "content"
)

// Analyzer names. Both lowercase at index time; queries must lowercase their
// input to match (stored field values keep original case).
const (
	analyzerLowerWhole  = "lower_whole"  // whole value as one lowercased term (paths, timestamps)
	analyzerLowerTokens = "lower_tokens" // unicode tokens, lowercased, no stop words
)

// buildMapping defines the event document schema: md5Id as the exact-match
// upsert key, the string timestamp as a single term, the numeric timestamp
// range-queryable, and path/content indexed case-insensitively but stored in
// original case.
func buildMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()

	err := im.AddCustomAnalyzer(analyzerLowerWhole, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}

	// Unicode tokenizer with only a lowercase filter: no stop words, so log
	// tokens like "INFO", "the", and bare numbers all stay queryable.
	err = im.AddCustomAnalyzer(analyzerLowerTokens, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}

	doc := bleve.NewDocumentMapping()

	id := bleve.NewTextFieldMapping()
	id.Analyzer = keyword.Name
	id.Store = true
	id.IncludeInAll = false
	id.IncludeTermVectors = false
	doc.AddFieldMappingsAt(FieldMD5ID, id)

	strTS := bleve.NewTextFieldMapping()
	strTS.Analyzer = analyzerLowerWhole
	strTS.Store = true
	strTS.IncludeInAll = false
	strTS.IncludeTermVectors = false
	doc.AddFieldMappingsAt(FieldStrTimestamp, strTS)

	longTS := bleve.NewNumericFieldMapping()
	longTS.Store = true
	longTS.IncludeInAll = false
	doc.AddFieldMappingsAt(FieldLongTimestamp, longTS)

	logPath := bleve.NewTextFieldMapping()
	logPath.Analyzer = analyzerLowerWhole
	logPath.Store = true
	logPath.IncludeInAll = false
	logPath.IncludeTermVectors = false
	doc.AddFieldMappingsAt(FieldLogPath, logPath)

	content := bleve.NewTextFieldMapping()
	content.Analyzer = analyzerLowerTokens
	content.Store = true
	content.IncludeInAll = false
	content.IncludeTermVectors = false
	doc.AddFieldMappingsAt(FieldContent, content)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = analyzerLowerTokens

	return im, nil
}
